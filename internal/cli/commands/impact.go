package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/impact"
)

// ImpactOutput is the JSON output of the impact command.
type ImpactOutput struct {
	Reports  []*impact.Report       `json:"reports"`
	Combined *impact.CombinedReport `json:"combined,omitempty"`
}

// ImpactSummaryOutput is the JSON output of impact without arguments.
type ImpactSummaryOutput struct {
	Summary    impact.Summary  `json:"summary"`
	HighImpact []impact.Ranked `json:"high_impact"`
}

// NewImpactCommand creates the impact command.
func NewImpactCommand() *cobra.Command {
	var minCount int

	cmd := &cobra.Command{
		Use:   "impact [model...]",
		Short: "Estimate the blast radius of changing models",
		Long: `Report which nodes are affected when a model changes, the fraction of
the project that represents and the resulting risk level.

With several models the combined impact is reported as well. Without
arguments the risk distribution over every node is summarized.`,
		Example: `  # Impact of one model
  modelgraph impact stg_customers

  # Combined impact of a change set
  modelgraph impact stg_customers stg_orders

  # Risk summary of the whole project
  modelgraph impact --min-count 5`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImpact(cmd, args, minCount)
		},
	}

	cmd.Flags().IntVar(&minCount, "min-count", 1, "Minimum affected nodes to list in the summary")

	return cmd
}

func runImpact(cmd *cobra.Command, ids []string, minCount int) error {
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
	r := c.Renderer

	if len(ids) == 0 {
		out := ImpactSummaryOutput{Summary: ia.Summary(), HighImpact: nonNil(ia.HighImpact(minCount))}
		c.Hooks.EmitAnalysisComplete("impact", out)
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(out)
		}
		impactSummary(r, out)
		return nil
	}

	reports, err := ia.AnalyzeMany(ids)
	if err != nil {
		return notFound(err, an.Analyzer)
	}
	out := ImpactOutput{Reports: reports}
	if len(ids) > 1 {
		if out.Combined, err = ia.Combined(ids); err != nil {
			return err
		}
	}
	c.Hooks.EmitAnalysisComplete("impact", out)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	for _, rep := range reports {
		impactReport(r, rep)
		r.Println("")
	}
	if out.Combined != nil {
		cr := out.Combined
		r.Header(1, "Combined impact")
		r.KeyValue("Changed", output.FormatList(cr.Changed))
		r.KeyValue("Affected", fmt.Sprintf("%d of %d (%.1f%%)", cr.AffectedCount, cr.TotalNodes, cr.Fraction*100))
		r.KeyValue("Risk", riskLabel(r, cr.Risk))
	}
	return nil
}

func riskLabel(r *output.Renderer, risk impact.RiskLevel) string {
	if r.EffectiveMode() != output.ModeText {
		return risk.String()
	}
	styles := r.Styles()
	switch risk {
	case impact.RiskCritical, impact.RiskHigh:
		return styles.Error.Render(risk.String())
	case impact.RiskMedium:
		return styles.Warning.Render(risk.String())
	default:
		return styles.Success.Render(risk.String())
	}
}

func impactReport(r *output.Renderer, rep *impact.Report) {
	r.Header(1, "Impact of "+rep.ID)
	r.KeyValue("Risk", riskLabel(r, rep.Risk))
	r.KeyValue("Affected", fmt.Sprintf("%d of %d (%.1f%%)", rep.AffectedCount, rep.TotalNodes, rep.Fraction*100))
	r.KeyValue("Direct dependents", output.FormatList(rep.Direct))
	r.KeyValue("Distance from root", itoa(rep.DistanceFromRoot))
	r.KeyValue("Downstream depth", itoa(rep.DownstreamDepth))
	for _, kind := range sortedKeys(rep.AffectedByKind) {
		r.KeyValue("Affected "+kind+"s", itoa(rep.AffectedByKind[kind]))
	}
	r.Header(2, "Affected nodes")
	r.List(rep.Affected)
}

func impactSummary(r *output.Renderer, out ImpactSummaryOutput) {
	s := out.Summary
	r.Header(1, "Impact Summary")
	r.KeyValue("Nodes", itoa(s.TotalNodes))
	r.KeyValue("Edges", itoa(s.TotalEdges))
	r.KeyValue("Average affected", ftoa(s.AverageAffected))
	if s.MaxAffected != nil {
		r.KeyValue("Max affected", fmt.Sprintf("%s (%d)", s.MaxAffected.ID, s.MaxAffected.Count))
	}
	r.KeyValue("Thresholds", fmt.Sprintf("low %.2f, medium %.2f, high %.2f",
		s.Thresholds.Low, s.Thresholds.Medium, s.Thresholds.High))
	r.Println("")

	r.Header(2, "By risk")
	rows := make([][]string, 0, len(s.ByRisk))
	for _, level := range sortedKeys(s.ByRisk) {
		rows = append(rows, []string{level, itoa(s.ByRisk[level])})
	}
	r.Table([]string{"Risk", "Nodes"}, rows)
	r.Println("")

	r.Header(2, "High impact")
	rows = rows[:0]
	for _, h := range out.HighImpact {
		rows = append(rows, []string{h.ID, itoa(h.Count), riskLabel(r, h.Risk)})
	}
	r.Table([]string{"Node", "Affected", "Risk"}, rows)
}
