// Package unused compares declared models and sources with what the
// dependency graph actually references.
package unused

import (
	"sort"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/dag"
)

// Declared is the set of entities named by project metadata.
type Declared struct {
	Models  []string `json:"models"`
	Sources []string `json:"sources"`
	// Exposures maps an exposure name to the model ids it depends on.
	Exposures map[string][]string `json:"exposures"`
	// Macros are the macros defined in the project's macro files.
	Macros []string `json:"macros,omitempty"`
}

// Exposed returns the distinct model ids any exposure depends on.
func (d Declared) Exposed() map[string]bool {
	out := make(map[string]bool)
	for _, ids := range d.Exposures {
		for _, id := range ids {
			out[id] = true
		}
	}
	return out
}

// Options configures Detect.
type Options struct {
	// Kinds classifies graph nodes. With DeclareParsed, every node of
	// kind model counts as declared.
	Kinds         map[string]analyzer.NodeKind
	DeclareParsed bool
	// CalledMacros are the macro names invoked anywhere in the project.
	CalledMacros []string
}

// Report lists unused and unexpected entities. Every list is sorted.
type Report struct {
	// UnusedSources are declared sources nothing depends on.
	UnusedSources []string `json:"unused_sources"`
	// Orphaned are declared models with no dependencies and no dependents,
	// including declared models that no file defines.
	Orphaned []string `json:"orphaned"`
	// Terminal are models with dependencies but no dependents that no
	// exposure depends on. These are usually final outputs.
	Terminal []string `json:"terminal"`
	// Undeclared are referenced nodes missing from the declared set.
	Undeclared []string `json:"undeclared"`
	// UnusedMacros are defined macros that nothing calls.
	UnusedMacros []string `json:"unused_macros"`
	Total        int      `json:"total"`
}

// Detect computes the unused-entity report.
func Detect(graph dag.Reader, declared Declared, opts Options) *Report {
	models := toSet(declared.Models)
	sources := toSet(declared.Sources)
	if opts.DeclareParsed {
		for id, k := range opts.Kinds {
			if k == analyzer.KindModel {
				models[id] = true
			}
		}
	}
	exposed := declared.Exposed()

	r := &Report{
		UnusedSources: []string{},
		Orphaned:      []string{},
		Terminal:      []string{},
		Undeclared:    []string{},
		UnusedMacros:  []string{},
	}
	for id := range sources {
		if len(graph.DirectDependents(id)) == 0 {
			r.UnusedSources = append(r.UnusedSources, id)
		}
	}
	for id := range models {
		deps := len(graph.DirectDependencies(id))
		dependents := len(graph.DirectDependents(id))
		switch {
		case deps == 0 && dependents == 0:
			r.Orphaned = append(r.Orphaned, id)
		case dependents == 0 && !exposed[id]:
			r.Terminal = append(r.Terminal, id)
		}
	}
	for _, id := range graph.Nodes() {
		if models[id] || sources[id] {
			continue
		}
		if len(graph.DirectDependents(id)) > 0 {
			r.Undeclared = append(r.Undeclared, id)
		}
	}

	called := toSet(opts.CalledMacros)
	for _, m := range declared.Macros {
		if !called[m] {
			r.UnusedMacros = append(r.UnusedMacros, m)
		}
	}

	sort.Strings(r.UnusedSources)
	sort.Strings(r.Orphaned)
	sort.Strings(r.Terminal)
	sort.Strings(r.UnusedMacros)
	r.Total = len(r.UnusedSources) + len(r.Orphaned) + len(r.Terminal) + len(r.Undeclared) + len(r.UnusedMacros)
	return r
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
