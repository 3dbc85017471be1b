package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/search"
)

// SearchHit is a search result with the node kind.
type SearchHit struct {
	search.Result
	Kind analyzer.NodeKind `json:"kind"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find models and sources by name",
		Long: `Search node names case-insensitively. Exact matches rank first, then
prefix and substring matches, then close spellings.`,
		Example: `  modelgraph search orders
  modelgraph search custmers --limit 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Max results (0 = all)")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, limit int) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	results := search.Find(query, an.Analyzer.Graph().Nodes(), limit)
	hits := make([]SearchHit, len(results))
	for i, res := range results {
		kind, _ := an.Analyzer.Kind(res.ID)
		hits[i] = SearchHit{Result: res, Kind: kind}
	}
	c.Hooks.EmitAnalysisComplete("search", hits)

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(hits)
	}
	r.Header(1, "Results for "+query)
	if len(hits) == 0 {
		r.Println("No matches.")
		return nil
	}
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []string{h.ID, string(h.Kind), string(h.Match), ftoa(h.Score)})
	}
	r.Table([]string{"Node", "Kind", "Match", "Score"}, rows)
	return nil
}
