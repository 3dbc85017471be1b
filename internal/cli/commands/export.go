package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/export"
	"github.com/leapstack-labs/modelgraph/internal/lineage"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	Format    string
	Model     string
	Depth     int
	Output    string
	Title     string
	Direction string
	SelectOptions
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the dependency graph",
		Long: `Render the dependency graph as JSON, Graphviz DOT or a Mermaid flowchart.
Edges point in the direction data flows, from a dependency to its dependents.

With --model only the lineage of that model is exported and the model is
highlighted. --select and --exclude narrow the export to the chosen nodes
and combine with --model.`,
		Example: `  # Graphviz
  modelgraph export --format dot | dot -Tsvg > graph.svg

  # Mermaid for one model's lineage
  modelgraph export --format mermaid --model fct_orders --depth 2

  # Only the staging layer
  modelgraph export --format dot --select "tag:staging"

  # Write JSON to a file
  modelgraph export --format json --out graph.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", string(export.FormatMermaid), "Export format: json, dot, mermaid")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Export only this model's lineage")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Lineage depth with --model (0 = unlimited)")
	cmd.Flags().StringVar(&opts.Output, "out", "", "Write to this file instead of stdout")
	cmd.Flags().StringVar(&opts.Title, "title", "", "Diagram title")
	cmd.Flags().StringVar(&opts.Direction, "direction", "LR", "Layout direction: LR, RL, TB, BT")
	addSelectFlags(cmd, &opts.SelectOptions)
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return export.Formats(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) error {
	renderer, err := export.Lookup(opts.Format)
	if err != nil {
		return err
	}
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	g := an.Analyzer.Graph()
	in := export.Input{
		Graph:     g.Snapshot(),
		Kinds:     an.Analyzer.Kinds(),
		Title:     opts.Title,
		Direction: opts.Direction,
	}
	if opts.Model != "" {
		lin, err := lineage.NewTracker(g).Bounded(opts.Model, opts.Depth)
		if err != nil {
			return notFound(err, an.Analyzer)
		}
		ids := append([]string{lin.ID}, lin.Upstream...)
		ids = append(ids, lin.Downstream...)
		in.Graph = g.Subgraph(ids).Snapshot()
		in.Highlight = []string{lin.ID}
	}
	selected, narrowed, err := selectNodes(an, &opts.SelectOptions)
	if err != nil {
		return err
	}
	if narrowed {
		in.Graph = g.Subgraph(keepSelected(in.Graph.Nodes, selected)).Snapshot()
		in.Highlight = keepSelected(in.Highlight, selected)
	}

	var w io.Writer = cmd.OutOrStdout()
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.Output, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if err := renderer.Render(w, in); err != nil {
		return fmt.Errorf("failed to export graph: %w", err)
	}
	c.Hooks.EmitAnalysisComplete("export", in.Graph)
	if opts.Output != "" {
		c.Logger.Info("exported graph", "format", opts.Format, "path", opts.Output,
			"nodes", len(in.Graph.Nodes), "edges", len(in.Graph.Edges))
	}
	return nil
}
