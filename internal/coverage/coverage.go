// Package coverage catalogs the tests of a project and reports which models
// they cover.
package coverage

import (
	"sort"

	"github.com/leapstack-labs/modelgraph/internal/extract"
	"github.com/leapstack-labs/modelgraph/internal/project"
)

// Kind classifies a test.
type Kind string

// Test kinds. Schema tests are the built-in generic tests; any other
// generic test is custom. Data tests are standalone queries.
const (
	KindSchema Kind = "schema"
	KindCustom Kind = "custom"
	KindData   Kind = "data"
)

// BuiltinTests are the generic tests every project has.
var BuiltinTests = map[string]bool{
	"unique":          true,
	"not_null":        true,
	"accepted_values": true,
	"relationships":   true,
}

// Test is one declared test.
type Test struct {
	Name   string         `json:"name"`
	Kind   Kind           `json:"kind"`
	Model  string         `json:"model,omitempty"`
	Column string         `json:"column,omitempty"`
	Config map[string]any `json:"config,omitempty"`
	// Path is set for data tests.
	Path string `json:"path,omitempty"`
	// Severity is "error" unless the test config sets it.
	Severity string `json:"severity"`
}

// Collect lists schema tests in model and column order followed by data
// tests in path order. A data test covers the first model it refs.
func Collect(schemas []project.ModelSchema, dataTests map[string]string) []Test {
	var out []Test
	for _, m := range schemas {
		for _, ts := range m.Tests {
			out = append(out, fromDecl(ts, m.Name, ""))
		}
		for _, col := range m.Columns {
			for _, ts := range col.Tests {
				out = append(out, fromDecl(ts, m.Name, col.Name))
			}
		}
	}

	paths := make([]string, 0, len(dataTests))
	for p := range dataTests {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		rec := extract.Extract(p, dataTests[p])
		t := Test{Name: rec.ID, Kind: KindData, Path: p, Severity: "error"}
		if len(rec.Refs) > 0 {
			t.Model = rec.Refs[0]
		}
		if sev, ok := rec.Config["severity"]; ok {
			t.Severity = sev
		}
		out = append(out, t)
	}
	return out
}

func fromDecl(ts project.TestSpec, model, column string) Test {
	t := Test{
		Name:     ts.Name,
		Kind:     KindCustom,
		Model:    model,
		Column:   column,
		Config:   ts.Config,
		Severity: "error",
	}
	if BuiltinTests[ts.Name] {
		t.Kind = KindSchema
	}
	if cfg, ok := ts.Config["config"].(map[string]any); ok {
		if sev, ok := cfg["severity"].(string); ok {
			t.Severity = sev
		}
	}
	if sev, ok := ts.Config["severity"].(string); ok {
		t.Severity = sev
	}
	return t
}

// ByModel returns the tests that cover model.
func ByModel(tests []Test, model string) []Test {
	var out []Test
	for _, t := range tests {
		if t.Model == model {
			out = append(out, t)
		}
	}
	return out
}

// Report summarizes coverage over a set of models.
type Report struct {
	TotalModels  int      `json:"total_models"`
	TestedModels int      `json:"tested_models"`
	Untested     []string `json:"untested"`
	// Percent is TestedModels over TotalModels, 0 for no models.
	Percent     float64 `json:"coverage_pct"`
	TotalTests  int     `json:"total_tests"`
	SchemaTests int     `json:"schema_tests"`
	CustomTests int     `json:"custom_tests"`
	DataTests   int     `json:"data_tests"`
	// PerModel counts tests per covered model.
	PerModel map[string]int `json:"per_model"`
}

// Compute measures how many of models have at least one test. Tests on
// models outside the set still count toward the test totals.
func Compute(tests []Test, models []string) Report {
	r := Report{
		TotalModels: len(models),
		TotalTests:  len(tests),
		Untested:    []string{},
		PerModel:    make(map[string]int),
	}
	for _, t := range tests {
		switch t.Kind {
		case KindSchema:
			r.SchemaTests++
		case KindCustom:
			r.CustomTests++
		case KindData:
			r.DataTests++
		}
		if t.Model != "" {
			r.PerModel[t.Model]++
		}
	}
	for _, m := range models {
		if r.PerModel[m] > 0 {
			r.TestedModels++
		} else {
			r.Untested = append(r.Untested, m)
		}
	}
	sort.Strings(r.Untested)
	if r.TotalModels > 0 {
		r.Percent = float64(r.TestedModels) / float64(r.TotalModels) * 100
	}
	return r
}

// Tested returns the set of models with at least one test.
func Tested(tests []Test) map[string]bool {
	out := make(map[string]bool)
	for _, t := range tests {
		if t.Model != "" {
			out[t.Model] = true
		}
	}
	return out
}
