package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/dag"
)

// GraphOutput is the JSON output of the graph command.
type GraphOutput struct {
	TotalNodes       int               `json:"total_nodes"`
	TotalEdges       int               `json:"total_edges"`
	Models           []string          `json:"models"`
	Sources          []string          `json:"sources"`
	Dangling         []string          `json:"dangling"`
	Roots            []string          `json:"roots"`
	Leaves           []string          `json:"leaves"`
	Isolated         []string          `json:"isolated"`
	MostDependedOn   []analyzer.Ranked `json:"most_depended_on"`
	MostDependencies []analyzer.Ranked `json:"most_dependencies"`
	Acyclic          bool              `json:"acyclic"`
	// Levels is omitted when the graph has cycles.
	Levels [][]string `json:"levels,omitempty"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	var top int
	sel := &SelectOptions{}

	cmd := &cobra.Command{
		Use:   "graph [model]",
		Short: "Show the dependency graph",
		Long: `Display the dependency graph of all models and sources.

Without an argument the graph is summarized: node counts by kind, roots,
leaves, the most connected nodes and, for acyclic graphs, the execution
levels showing which models can be built in parallel.

With a model argument the dependency report for that node is shown.

--select and --exclude narrow the summary to the chosen nodes and the
edges between them.`,
		Example: `  # Summarize the graph
  modelgraph graph

  # Dependency report for one model
  modelgraph graph fct_orders

  # Everything upstream of a mart, without sources
  modelgraph graph --select +fct_orders --exclude kind:source

  # Output as JSON
  modelgraph graph --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args, top, sel)
		},
	}

	cmd.Flags().IntVar(&top, "top", 5, "Number of most connected nodes to show")
	addSelectFlags(cmd, sel)

	return cmd
}

func runGraph(cmd *cobra.Command, args []string, top int, sel *SelectOptions) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	a := an.Analyzer
	r := c.Renderer

	if len(args) == 1 {
		report, err := a.Report(args[0])
		if err != nil {
			return notFound(err, a)
		}
		c.Hooks.EmitAnalysisComplete("graph", report)
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(report)
		}
		renderDependencyReport(r, report)
		return nil
	}

	selected, narrowed, err := selectNodes(an, sel)
	if err != nil {
		return err
	}
	var out GraphOutput
	var g dag.Reader
	if narrowed {
		out, g = selectedSummary(a, selected, top)
	} else {
		g = a.Graph()
		out = GraphOutput{
			TotalNodes:       g.NodeCount(),
			TotalEdges:       g.EdgeCount(),
			Models:           nonNil(a.Models()),
			Sources:          nonNil(a.Sources()),
			Dangling:         nonNil(a.Dangling()),
			Roots:            nonNil(g.Roots()),
			Leaves:           nonNil(g.Leaves()),
			Isolated:         nonNil(a.Isolated()),
			MostDependedOn:   a.MostDependedOn(top),
			MostDependencies: a.MostDependencies(top),
		}
	}
	levels, err := g.ExecutionLevels()
	var cycleErr *dag.CycleError
	switch {
	case err == nil:
		out.Acyclic = true
		out.Levels = levels
	case !errors.As(err, &cycleErr):
		return fmt.Errorf("failed to get execution levels: %w", err)
	}
	c.Hooks.EmitAnalysisComplete("graph", out)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		reportWarnings(r, an)
		graphMarkdown(r, g, out)
	default:
		reportWarnings(r, an)
		graphText(r, g, out)
	}
	return nil
}

// selectedSummary summarizes the subgraph of the selected nodes. Rankings
// keep their whole-graph counts.
func selectedSummary(a *analyzer.Analyzer, selected []string, top int) (GraphOutput, dag.Reader) {
	sub := a.Graph().Subgraph(selected)
	var isolated []string
	for _, id := range sub.Nodes() {
		if len(sub.DirectDependencies(id)) == 0 && len(sub.DirectDependents(id)) == 0 {
			isolated = append(isolated, id)
		}
	}
	return GraphOutput{
		TotalNodes:       sub.NodeCount(),
		TotalEdges:       sub.EdgeCount(),
		Models:           keepSelected(a.Models(), selected),
		Sources:          keepSelected(a.Sources(), selected),
		Dangling:         keepSelected(a.Dangling(), selected),
		Roots:            nonNil(sub.Roots()),
		Leaves:           nonNil(sub.Leaves()),
		Isolated:         nonNil(isolated),
		MostDependedOn:   rankedWithin(a.MostDependedOn(0), selected, top),
		MostDependencies: rankedWithin(a.MostDependencies(0), selected, top),
	}, sub
}

func rankedWithin(ranked []analyzer.Ranked, selected []string, top int) []analyzer.Ranked {
	keep := make(map[string]bool, len(selected))
	for _, id := range selected {
		keep[id] = true
	}
	out := make([]analyzer.Ranked, 0, len(ranked))
	for _, r := range ranked {
		if keep[r.ID] {
			out = append(out, r)
		}
	}
	if top > 0 && top < len(out) {
		out = out[:top]
	}
	return out
}

// graphText outputs the graph in styled text format.
func graphText(r *output.Renderer, g dag.Reader, out GraphOutput) {
	styles := r.Styles()

	r.Header(1, "Dependency Graph")
	r.Println("")

	for i, level := range out.Levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, id := range level {
			deps := g.DirectDependencies(id)
			dependents := g.DirectDependents(id)

			r.Printf("  %s\n", styles.ModelPath.Render(id))
			if len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if len(dependents) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(dependents, ", "))
			}
		}
		r.Println("")
	}
	if !out.Acyclic {
		r.Println(styles.Error.Render("Graph has cycles; run 'modelgraph cycles' for details"))
		r.Println("")
	}

	renderRanked(r, "Most depended on", out.MostDependedOn)
	renderRanked(r, "Most dependencies", out.MostDependencies)

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d nodes (%d models, %d sources, %d dangling), %d dependencies",
		out.TotalNodes, len(out.Models), len(out.Sources), len(out.Dangling), out.TotalEdges)))
}

// graphMarkdown outputs the graph in markdown format.
func graphMarkdown(r *output.Renderer, g dag.Reader, out GraphOutput) {
	r.Println(output.FormatHeader(1, "Dependency Graph"))
	r.Println("")

	for i, level := range out.Levels {
		name := fmt.Sprintf("Level %d", i)
		if i == 0 {
			name = "Level 0 (Roots)"
		}
		r.Println(output.FormatHeader(2, name))
		for _, id := range level {
			deps := g.DirectDependencies(id)
			dependents := g.DirectDependents(id)

			r.Printf("- %s\n", id)
			if len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if len(dependents) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(dependents, ", "))
			}
		}
		r.Println("")
	}
	if !out.Acyclic {
		r.Println("> Graph has cycles; execution levels are undefined.")
		r.Println("")
	}

	renderRanked(r, "Most depended on", out.MostDependedOn)
	renderRanked(r, "Most dependencies", out.MostDependencies)

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Nodes", itoa(out.TotalNodes)))
	r.Println(output.FormatKeyValue("Models", itoa(len(out.Models))))
	r.Println(output.FormatKeyValue("Sources", itoa(len(out.Sources))))
	r.Println(output.FormatKeyValue("Dangling", output.FormatList(out.Dangling)))
	r.Println(output.FormatKeyValue("Total Dependencies", itoa(out.TotalEdges)))
	r.Println(output.FormatKeyValue("Roots", output.FormatList(out.Roots)))
	r.Println(output.FormatKeyValue("Leaves", output.FormatList(out.Leaves)))
	r.Println(output.FormatKeyValue("Isolated", output.FormatList(out.Isolated)))
}

func renderRanked(r *output.Renderer, title string, ranked []analyzer.Ranked) {
	r.Header(2, title)
	rows := make([][]string, 0, len(ranked))
	for _, x := range ranked {
		rows = append(rows, []string{x.ID, itoa(x.Count)})
	}
	r.Table([]string{"Node", "Count"}, rows)
	r.Println("")
}

func renderDependencyReport(r *output.Renderer, rep *analyzer.DependencyReport) {
	r.Header(1, rep.ID)
	r.KeyValue("Kind", string(rep.Kind))
	r.KeyValue("Depends on", output.FormatList(rep.DirectDependencies))
	r.KeyValue("Used by", output.FormatList(rep.DirectDependents))
	r.KeyValue("Upstream", fmt.Sprintf("%d nodes", rep.UpstreamCount))
	r.KeyValue("Downstream", fmt.Sprintf("%d nodes", rep.DownstreamCount))
	r.KeyValue("Depth", itoa(rep.Depth))
	r.KeyValue("Root", fmt.Sprint(rep.IsRoot))
	r.KeyValue("Leaf", fmt.Sprint(rep.IsLeaf))
}
