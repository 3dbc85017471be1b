// Package validate checks models against naming, configuration, reference
// and documentation rules.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/extract"
	"github.com/leapstack-labs/modelgraph/internal/project"
)

// Severity indicates the importance of a finding.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Kind names a group of rules.
type Kind string

const (
	KindNaming Kind = "naming"
	KindConfig Kind = "config"
	KindRefs   Kind = "refs"
	KindDocs   Kind = "docs"
)

// AllKinds lists every rule group in run order.
var AllKinds = []Kind{KindNaming, KindConfig, KindRefs, KindDocs}

// ParseKind validates a rule group name.
func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds {
		if string(k) == strings.ToLower(s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown validation rule group %q", s)
}

// ParseKinds validates names, returning AllKinds for an empty list.
func ParseKinds(names []string) ([]Kind, error) {
	if len(names) == 0 {
		return AllKinds, nil
	}
	out := make([]Kind, 0, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// Finding is one rule violation.
type Finding struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Model    string   `json:"model"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", f.Severity, f.Rule, f.Model, f.Message)
}

// Input is what validators inspect.
type Input struct {
	Records  []*extract.ModelRecord
	Warnings []analyzer.StructuralWarning
	// Schemas are the documented models; docs rules inspect only these.
	Schemas []project.ModelSchema
}

type validator func(Input) []Finding

var validators = map[Kind]validator{
	KindNaming: checkNaming,
	KindConfig: checkConfig,
	KindRefs:   checkRefs,
	KindDocs:   checkDocs,
}

// Run applies the rule groups in kinds and returns findings ordered by
// model, rule and message.
func Run(kinds []Kind, in Input) []Finding {
	out := []Finding{}
	seen := make(map[Kind]bool)
	for _, k := range kinds {
		v, ok := validators[k]
		if !ok || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v(in)...)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
	return out
}

// Summary counts findings by severity.
type Summary struct {
	Total    int `json:"total"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// Summarize counts findings by severity.
func Summarize(findings []Finding) Summary {
	s := Summary{Total: len(findings)}
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		case SeverityInfo:
			s.Info++
		}
	}
	return s
}
