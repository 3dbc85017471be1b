package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/coverage"
	"github.com/leapstack-labs/modelgraph/internal/selector"
)

// SelectOptions holds the node selection flags shared by graph, export and
// order.
type SelectOptions struct {
	Select  string
	Exclude string
}

func (o *SelectOptions) active() bool {
	return strings.TrimSpace(o.Select) != "" || strings.TrimSpace(o.Exclude) != ""
}

func addSelectFlags(cmd *cobra.Command, o *SelectOptions) {
	cmd.Flags().StringVarP(&o.Select, "select", "s", "", "Only include nodes matching this selector (e.g. +fct_orders, tag:nightly)")
	cmd.Flags().StringVar(&o.Exclude, "exclude", "", "Drop nodes matching this selector")
}

// selectNodes applies the selection flags. The second result is false when
// no selection was requested.
func selectNodes(an *Analysis, o *SelectOptions) ([]string, bool, error) {
	if !o.active() {
		return nil, false, nil
	}
	ids, err := selector.Select(an.Analyzer.Graph(), buildCatalog(an), o.Select, o.Exclude)
	if err != nil {
		return nil, true, err
	}
	return ids, true, nil
}

// buildCatalog collects the attributes selectors match on. Tags come from
// the tags config value and from schema files.
func buildCatalog(an *Analysis) selector.Catalog {
	tested := coverage.Tested(coverage.Collect(an.Project.Schemas, an.Project.DataTests))
	cat := make(selector.Catalog)
	for id, kind := range an.Analyzer.Kinds() {
		n := selector.Node{Kind: kind, Tested: tested[id]}
		if rec, ok := an.Analyzer.Record(id); ok {
			n.Path = rec.Path
			n.Config = rec.Config
			for _, t := range strings.Split(rec.Config["tags"], ",") {
				if t = strings.TrimSpace(t); t != "" {
					n.Tags = append(n.Tags, t)
				}
			}
		}
		if s, ok := an.Project.Schema(id); ok {
			n.Tags = append(n.Tags, s.Tags...)
		}
		cat[id] = n
	}
	return cat
}

// keepSelected filters ids to the selection, preserving their order.
func keepSelected(ids, selected []string) []string {
	keep := make(map[string]bool, len(selected))
	for _, id := range selected {
		keep[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if keep[id] {
			out = append(out, id)
		}
	}
	return out
}
