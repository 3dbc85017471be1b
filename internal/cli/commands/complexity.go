package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/complexity"
)

// ComplexityOptions holds options for the complexity command.
type ComplexityOptions struct {
	Top       int
	Threshold float64
	Model     string
}

// ComplexityOutput is the JSON output of the complexity command.
type ComplexityOutput struct {
	Summary complexity.Summary      `json:"summary"`
	Scores  []complexity.ModelScore `json:"scores"`
}

// NewComplexityCommand creates the complexity command.
func NewComplexityCommand() *cobra.Command {
	opts := &ComplexityOptions{}

	cmd := &cobra.Command{
		Use:   "complexity",
		Short: "Score models by structural complexity",
		Long: `Score every model as a weighted sum of its structural features: lines,
CTEs, joins, subqueries, refs, sources, template blocks, conditionals,
aggregates and nesting depth. Weights come from complexity.weights in the
config file.`,
		Example: `  # Ten most complex models
  modelgraph complexity

  # Breakdown for one model
  modelgraph complexity --model fct_orders

  # Flag models above 30
  modelgraph complexity --threshold 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runComplexity(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Top, "top", 0, "Number of models to list (0 = complexity.top)")
	cmd.Flags().Float64Var(&opts.Threshold, "threshold", 0, "Flag models above this score (0 = complexity.threshold)")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Show the breakdown for one model")

	return cmd
}

func runComplexity(cmd *cobra.Command, opts *ComplexityOptions) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	top := opts.Top
	if top <= 0 {
		top = c.Cfg.Complexity.Top
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = c.Cfg.Complexity.Threshold
	}
	weights := c.Cfg.Complexity.Weights

	r := c.Renderer
	if opts.Model != "" {
		rec, ok := an.Analyzer.Record(opts.Model)
		if !ok {
			return fmt.Errorf("model %q not found", opts.Model)
		}
		score := complexity.Score(rec, weights)
		c.Hooks.EmitAnalysisComplete("complexity", score)
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(score)
		}
		complexityBreakdown(r, score)
		return nil
	}

	ranked := cached(cmd.Context(), c, an, "complexity:"+weightsKey(weights), func() []complexity.ModelScore {
		return complexity.Rank(an.Analyzer.Records(), weights)
	})
	out := ComplexityOutput{
		Summary: complexity.Summarize(ranked, threshold, top),
		Scores:  nonNil(ranked),
	}
	c.Hooks.EmitAnalysisComplete("complexity", out)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	complexityText(r, out.Summary)
	return nil
}

// weightsKey is a stable rendering of weights for cache keys.
func weightsKey(w complexity.Weights) string {
	parts := make([]string, 0, len(w))
	for _, k := range sortedKeys(w) {
		parts = append(parts, fmt.Sprintf("%s=%g", k, w[k]))
	}
	return strings.Join(parts, ",")
}

func complexityText(r *output.Renderer, s complexity.Summary) {
	r.Header(1, "Complexity")
	r.KeyValue("Models", itoa(s.Count))
	r.KeyValue("Average", ftoa(s.Average))
	r.KeyValue("Max", ftoa(s.Max))
	r.KeyValue("Min", ftoa(s.Min))
	r.Println("")

	r.Header(2, fmt.Sprintf("Most complex (top %d)", len(s.MostComplex)))
	rows := make([][]string, 0, len(s.MostComplex))
	for _, ms := range s.MostComplex {
		rows = append(rows, []string{
			ms.ID,
			ftoa(ms.Value),
			itoa(ms.Counts[complexity.FeatureLines]),
			itoa(ms.Counts[complexity.FeatureJoins]),
			itoa(ms.Counts[complexity.FeatureCTEs]),
			itoa(ms.Counts[complexity.FeatureMaxDepth]),
		})
	}
	r.Table([]string{"Model", "Score", "Lines", "Joins", "CTEs", "Depth"}, rows)
	r.Println("")

	r.Header(2, fmt.Sprintf("Above %.1f (%d)", s.Threshold, len(s.AboveThreshold)))
	r.List(s.AboveThreshold)
}

func complexityBreakdown(r *output.Renderer, s complexity.ModelScore) {
	r.Header(1, fmt.Sprintf("%s: %.2f", s.ID, s.Value))
	rows := make([][]string, 0, len(s.Counts))
	for _, name := range sortedKeys(s.Counts) {
		rows = append(rows, []string{name, itoa(s.Counts[name]), ftoa(s.Breakdown[name])})
	}
	r.Table([]string{"Feature", "Count", "Contribution"}, rows)
}
