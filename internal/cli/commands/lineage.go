package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/lineage"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Upstream   bool
	Downstream bool
	Depth      int
	To         string
	MaxPaths   int
}

// PathsOutput is the JSON output of lineage --to.
type PathsOutput struct {
	From  string     `json:"from"`
	To    string     `json:"to"`
	Paths [][]string `json:"paths"`
	Count int        `json:"count"`
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <model>",
		Short: "Show lineage for a model",
		Long: `Display the upstream dependencies and downstream dependents of a model.

The lineage shows how data flows through your models, helping you understand
the impact of changes and debug data issues. With --to, the data-flow paths
between the two nodes are listed instead.`,
		Example: `  # Show full lineage for a model
  modelgraph lineage stg_customers

  # Show only upstream dependencies
  modelgraph lineage stg_customers --downstream=false

  # Show only downstream dependents
  modelgraph lineage stg_customers --upstream=false

  # Limit traversal depth
  modelgraph lineage stg_customers --depth 2

  # Paths from a source to a mart
  modelgraph lineage raw.customers --to fct_orders

  # Output as JSON
  modelgraph lineage stg_customers --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Upstream, "upstream", true, "Include upstream dependencies")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", true, "Include downstream dependents")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max traversal depth (0 = unlimited)")
	cmd.Flags().StringVar(&opts.To, "to", "", "List data-flow paths to this node")
	cmd.Flags().IntVar(&opts.MaxPaths, "max-paths", 0, "Max paths to list (0 = lineage.max_paths)")

	return cmd
}

func runLineage(cmd *cobra.Command, id string, opts *LineageOptions) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	tracker := lineage.NewTracker(an.Analyzer.Graph())
	r := c.Renderer

	if opts.To != "" {
		maxPaths := opts.MaxPaths
		if maxPaths <= 0 {
			maxPaths = c.Cfg.Lineage.MaxPaths
		}
		out, err := findPaths(tracker, id, opts.To, maxPaths)
		if err != nil {
			return notFound(err, an.Analyzer)
		}
		c.Hooks.EmitAnalysisComplete("lineage", out)
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(out)
		}
		lineagePaths(r, out, maxPaths)
		return nil
	}

	lin, err := tracker.Bounded(id, opts.Depth)
	if err != nil {
		return notFound(err, an.Analyzer)
	}
	if !opts.Upstream {
		lin.Upstream = []string{}
	}
	if !opts.Downstream {
		lin.Downstream = []string{}
	}
	c.Hooks.EmitAnalysisComplete("lineage", lin)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(lin)
	}
	lineageText(r, lin, opts)
	return nil
}

// findPaths lists paths from id to target, falling back to the reverse
// direction when data does not flow that way.
func findPaths(t *lineage.Tracker, id, target string, maxPaths int) (*PathsOutput, error) {
	paths, err := t.Paths(id, target, maxPaths)
	if err != nil {
		return nil, err
	}
	out := &PathsOutput{From: id, To: target, Paths: paths}
	if len(paths) == 0 {
		if rev, err := t.Paths(target, id, maxPaths); err == nil && len(rev) > 0 {
			out = &PathsOutput{From: target, To: id, Paths: rev}
		}
	}
	out.Count = len(out.Paths)
	return out, nil
}

// lineageText outputs lineage in the text or markdown format.
func lineageText(r *output.Renderer, lin *lineage.Lineage, opts *LineageOptions) {
	r.Header(1, "Lineage for: "+lin.ID)
	if lin.MaxDepth > 0 {
		r.KeyValue("Depth limit", itoa(lin.MaxDepth))
	}

	if opts.Upstream {
		r.Header(2, fmt.Sprintf("Upstream dependencies (%d, depth %d)", len(lin.Upstream), lin.DepthUp))
		r.List(lin.Upstream)
		r.Println("")
	}
	if opts.Downstream {
		r.Header(2, fmt.Sprintf("Downstream dependents (%d, depth %d)", len(lin.Downstream), lin.DepthDown))
		r.List(lin.Downstream)
	}
}

func lineagePaths(r *output.Renderer, out *PathsOutput, maxPaths int) {
	r.Header(1, fmt.Sprintf("Paths from %s to %s", out.From, out.To))
	items := make([]string, len(out.Paths))
	for i, p := range out.Paths {
		items[i] = strings.Join(p, " -> ")
	}
	r.List(items)
	if out.Count >= maxPaths && maxPaths > 0 {
		r.Warn(fmt.Sprintf("stopped after %d paths", maxPaths))
	}
}
