package validate

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/textdist"
)

type layer struct {
	dir     string
	rule    string
	pattern *regexp.Regexp
	want    string
}

var layers = []layer{
	{"staging", "staging-prefix", regexp.MustCompile(`^stg_\w+$`), "stg_"},
	{"intermediate", "intermediate-prefix", regexp.MustCompile(`^int_\w+$`), "int_"},
	{"marts", "marts-prefix", regexp.MustCompile(`^(fct|dim)_\w+$`), "fct_ or dim_"},
}

var snakeCase = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// inDir reports whether a slash path has dir as one of its directories.
func inDir(p, dir string) bool {
	for _, seg := range strings.Split(path.Dir(p), "/") {
		if seg == dir {
			return true
		}
	}
	return false
}

func checkNaming(in Input) []Finding {
	var out []Finding
	for _, rec := range in.Records {
		p := strings.ReplaceAll(rec.Path, `\`, "/")
		for _, l := range layers {
			if inDir(p, l.dir) && !l.pattern.MatchString(rec.ID) {
				out = append(out, Finding{
					Rule:     l.rule,
					Severity: SeverityWarning,
					Model:    rec.ID,
					Message:  fmt.Sprintf("models under %s/ should be prefixed %s", l.dir, l.want),
				})
			}
		}
		if !snakeCase.MatchString(rec.ID) {
			out = append(out, Finding{
				Rule:     "snake-case",
				Severity: SeverityWarning,
				Model:    rec.ID,
				Message:  "model names should use snake_case",
			})
		}
	}
	return out
}

// Materializations are the accepted values of the materialized setting.
var Materializations = map[string]bool{
	"view": true, "table": true, "incremental": true, "ephemeral": true,
}

// ConfigKeys are the recognized config() settings.
var ConfigKeys = map[string]bool{
	"materialized": true, "schema": true, "alias": true, "database": true,
	"tags": true, "pre_hook": true, "post_hook": true, "enabled": true,
	"persist_docs": true, "full_refresh": true, "unique_key": true,
	"strategy": true, "incremental_strategy": true, "updated_at": true,
	"check_cols": true, "on_schema_change": true,
}

func checkConfig(in Input) []Finding {
	var out []Finding
	for _, rec := range in.Records {
		if m, ok := rec.Config["materialized"]; ok && !Materializations[m] {
			out = append(out, Finding{
				Rule:     "invalid-materialization",
				Severity: SeverityError,
				Model:    rec.ID,
				Message:  fmt.Sprintf("materialized=%q is not one of ephemeral, incremental, table, view", m),
			})
		}
		for key := range rec.Config {
			if !ConfigKeys[key] {
				out = append(out, Finding{
					Rule:     "unknown-config-key",
					Severity: SeverityWarning,
					Model:    rec.ID,
					Message:  fmt.Sprintf("unrecognized config key %q", key),
				})
			}
		}
	}
	return out
}

func checkRefs(in Input) []Finding {
	models := make([]string, 0, len(in.Records))
	for _, rec := range in.Records {
		models = append(models, rec.ID)
	}
	sort.Strings(models)

	var out []Finding
	for _, w := range in.Warnings {
		switch w.Kind {
		case analyzer.Dangling:
			msg := fmt.Sprintf("ref('%s') does not match any model", w.Node)
			if s := textdist.SuggestSimilar(w.Node, models, 3); len(s) > 0 {
				msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(s, ", "))
			}
			for _, from := range w.Related {
				out = append(out, Finding{Rule: "dangling-ref", Severity: SeverityError, Model: from, Message: msg})
			}
		case analyzer.SelfLoop:
			out = append(out, Finding{
				Rule:     "self-reference",
				Severity: SeverityError,
				Model:    w.Node,
				Message:  "model references itself",
			})
		case analyzer.DuplicateID:
			out = append(out, Finding{
				Rule:     "duplicate-model",
				Severity: SeverityWarning,
				Model:    w.Node,
				Message:  fmt.Sprintf("defined by %s", strings.Join(w.Related, ", ")),
			})
		}
	}
	return out
}

// isKeyColumn reports whether a column name looks like a primary key.
func isKeyColumn(name string) bool {
	name = strings.ToLower(name)
	return name == "id" || strings.HasSuffix(name, "_id")
}

func checkDocs(in Input) []Finding {
	var out []Finding
	for _, m := range in.Schemas {
		if strings.TrimSpace(m.Description) == "" {
			out = append(out, Finding{
				Rule:     "model-description",
				Severity: SeverityWarning,
				Model:    m.Name,
				Message:  "model has no description",
			})
		}
		hasKeyTest, hasKeyColumn := false, false
		for _, col := range m.Columns {
			if strings.TrimSpace(col.Description) == "" {
				out = append(out, Finding{
					Rule:     "column-description",
					Severity: SeverityInfo,
					Model:    m.Name,
					Message:  fmt.Sprintf("column %q has no description", col.Name),
				})
			}
			names := col.TestNames()
			if slices.Contains(names, "unique") && slices.Contains(names, "not_null") {
				hasKeyTest = true
			}
			if isKeyColumn(col.Name) {
				hasKeyColumn = true
			}
		}
		if !hasKeyTest {
			out = append(out, Finding{
				Rule:     "primary-key-test",
				Severity: SeverityWarning,
				Model:    m.Name,
				Message:  "no column is tested unique and not_null",
			})
		}
		if len(m.Columns) > 0 && !hasKeyColumn {
			out = append(out, Finding{
				Rule:     "primary-key-column",
				Severity: SeverityInfo,
				Model:    m.Name,
				Message:  "no column is named id or *_id",
			})
		}
	}
	return out
}
