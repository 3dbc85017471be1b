package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/dag"
	"github.com/leapstack-labs/modelgraph/internal/impact"
)

// OrderOutput is the JSON output of the order command.
type OrderOutput struct {
	Order   []string   `json:"order"`
	Blocks  [][]string `json:"cycle_blocks"`
	Acyclic bool       `json:"acyclic"`
}

// NewOrderCommand creates the order command.
func NewOrderCommand() *cobra.Command {
	var strict bool
	sel := &SelectOptions{}

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Print models in build order",
		Long: `Print every node with its dependencies first. Ties are broken by name.

Nodes in a cycle are printed together as one block. With --strict a cyclic
graph is an error instead.

--select and --exclude print only the chosen nodes, still in whole-graph
order.`,
		Example: `  modelgraph order
  modelgraph order --strict
  modelgraph order --select "tag:nightly+"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOrder(cmd, strict, sel)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when the graph has cycles")
	addSelectFlags(cmd, sel)

	return cmd
}

func runOrder(cmd *cobra.Command, strict bool, sel *SelectOptions) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	order, err := an.Analyzer.Graph().TopologicalOrder()
	var cycleErr *dag.CycleError
	if err != nil && (strict || !errors.As(err, &cycleErr)) {
		return err
	}
	selected, narrowed, err := selectNodes(an, sel)
	if err != nil {
		return err
	}
	if narrowed {
		order.Nodes = keepSelected(order.Nodes, selected)
		var blocks [][]string
		for _, b := range order.Blocks {
			if kept := keepSelected(b, selected); len(kept) > 0 {
				blocks = append(blocks, kept)
			}
		}
		order.Blocks = blocks
	}
	out := OrderOutput{Order: nonNil(order.Nodes), Blocks: nonNil(order.Blocks), Acyclic: order.Acyclic}
	c.Hooks.EmitAnalysisComplete("order", out)

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	inBlock := make(map[string]int)
	for i, b := range order.Blocks {
		for _, id := range b {
			inBlock[id] = i + 1
		}
	}
	r.Header(1, "Build Order")
	rows := make([][]string, 0, len(order.Nodes))
	for i, id := range order.Nodes {
		block := ""
		if n, ok := inBlock[id]; ok {
			block = fmt.Sprintf("cycle %d", n)
		}
		rows = append(rows, []string{itoa(i + 1), id, block})
	}
	r.Table([]string{"#", "Node", "Note"}, rows)
	if !order.Acyclic {
		r.Warn(fmt.Sprintf("graph has %d cyclic block(s); their members have no valid order", len(order.Blocks)))
	}
	return nil
}

// NewCyclesCommand creates the cycles command.
func NewCyclesCommand() *cobra.Command {
	var failOnCycle bool

	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "List dependency cycles",
		Long: `List every elementary cycle in the dependency graph. Each cycle starts
at its smallest member and is closed back to it.`,
		Example: `  modelgraph cycles
  modelgraph cycles --fail`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCycles(cmd, failOnCycle)
		},
	}

	cmd.Flags().BoolVar(&failOnCycle, "fail", false, "Exit with an error when cycles exist")

	return cmd
}

// CyclesOutput is the JSON output of the cycles command.
type CyclesOutput struct {
	Cycles [][]string `json:"cycles"`
	Count  int        `json:"count"`
}

func runCycles(cmd *cobra.Command, failOnCycle bool) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	cycles := nonNil(an.Analyzer.Cycles())
	out := CyclesOutput{Cycles: cycles, Count: len(cycles)}
	c.Hooks.EmitAnalysisComplete("cycles", out)

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(out); err != nil {
			return err
		}
	} else {
		r.Header(1, fmt.Sprintf("Cycles (%d)", len(cycles)))
		if len(cycles) == 0 {
			r.Success("no cycles found")
		}
		items := make([]string, len(cycles))
		for i, cyc := range cycles {
			items[i] = strings.Join(cyc, " -> ") + " -> " + cyc[0]
		}
		if len(items) > 0 {
			r.List(items)
		}
	}

	if failOnCycle && len(cycles) > 0 {
		return &dag.CycleError{Cycles: cycles}
	}
	return nil
}

// NewCriticalPathCommand creates the critical-path command.
func NewCriticalPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "critical-path",
		Short: "Show the longest dependency chain",
		Long: `Show the longest chain of dependencies, from a root to the node furthest
downstream of it. The chain bounds how long a sequential build takes.`,
		Example: `  modelgraph critical-path`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCriticalPath(cmd)
		},
	}
}

func runCriticalPath(cmd *cobra.Command) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	ia := impact.New(an.Analyzer.Graph(), impact.Options{
		Thresholds: c.Cfg.Impact.Thresholds,
		Kinds:      an.Analyzer.Kinds(),
		Logger:     c.Logger,
	})
	cp, err := ia.CriticalPath()
	if err != nil {
		return fmt.Errorf("failed to compute critical path: %w", err)
	}
	cp.Path = nonNil(cp.Path)
	c.Hooks.EmitAnalysisComplete("critical-path", cp)

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(cp)
	}
	r.Header(1, "Critical Path")
	r.KeyValue("Length", fmt.Sprintf("%d edges", cp.Length))
	r.KeyValue("Path", strings.Join(cp.Path, " -> "))
	return nil
}
