package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/complexity"
)

// DuplicatesOutput is the JSON output of the duplicates command.
type DuplicatesOutput struct {
	Groups   []complexity.DuplicateGroup `json:"groups"`
	CTENames []complexity.NameGroup      `json:"cte_names"`
	Configs  []complexity.NameGroup      `json:"configs"`
}

// NewDuplicatesCommand creates the duplicates command.
func NewDuplicatesCommand() *cobra.Command {
	var (
		threshold float64
		method    string
	)

	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Find near-duplicate models",
		Long: `Compare the normalized query body of every pair of models and group the
ones at or above the similarity threshold. Comments are stripped, literals
redacted and template blocks collapsed before comparing.

Also lists CTE names declared by several models and models sharing an
identical config() block.`,
		Example: `  modelgraph duplicates
  modelgraph duplicates --threshold 0.9 --method edit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDuplicates(cmd, threshold, method)
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Similarity threshold in (0, 1] (0 = duplicates.threshold)")
	cmd.Flags().StringVar(&method, "method", "", "Similarity method: token-set or edit (default duplicates.method)")
	_ = cmd.RegisterFlagCompletionFunc("method", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(complexity.MethodTokenSet), string(complexity.MethodEdit)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runDuplicates(cmd *cobra.Command, threshold float64, method string) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := c.Cfg.Duplicates
	if threshold != 0 {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("threshold must be in (0, 1], got %g", threshold)
		}
		opts.Threshold = threshold
	}
	if method != "" {
		if opts.Method, err = complexity.ParseMethod(method); err != nil {
			return err
		}
	}

	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	records := an.Analyzer.Records()
	key := fmt.Sprintf("duplicates:%s:%g:%d", opts.Method, opts.Threshold, opts.MaxLength)
	groups := cached(cmd.Context(), c, an, key, func() []complexity.DuplicateGroup {
		return complexity.FindDuplicates(records, opts)
	})
	out := DuplicatesOutput{
		Groups:   nonNil(groups),
		CTENames: complexity.DuplicateCTENames(records),
		Configs:  complexity.DuplicateConfigs(records),
	}
	c.Hooks.EmitAnalysisComplete("duplicates", out)

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("Similar models (%s, threshold %.2f)", opts.Method, opts.Threshold))
	if len(out.Groups) == 0 {
		r.Success("no near-duplicates found")
	} else {
		rows := make([][]string, 0, len(out.Groups))
		for _, g := range out.Groups {
			rows = append(rows, []string{
				output.FormatList(g.Members),
				ftoa(g.MinSimilarity),
				ftoa(g.MaxSimilarity),
				g.Pattern,
			})
		}
		r.Table([]string{"Models", "Min", "Max", "Pattern"}, rows)
	}
	r.Println("")

	nameGroups(r, "Shared CTE names", out.CTENames)
	nameGroups(r, "Identical configs", out.Configs)
	return nil
}

func nameGroups(r *output.Renderer, title string, groups []complexity.NameGroup) {
	r.Header(2, fmt.Sprintf("%s (%d)", title, len(groups)))
	items := make([]string, len(groups))
	for i, g := range groups {
		items[i] = g.Name + ": " + output.FormatList(g.Models)
	}
	r.List(items)
	r.Println("")
}
