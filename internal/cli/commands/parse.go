package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/extract"
)

// ParseOutput is the JSON output of the parse command.
type ParseOutput struct {
	Files      int                          `json:"files"`
	Models     []*extract.ModelRecord       `json:"models"`
	Warnings   []analyzer.StructuralWarning `json:"warnings"`
	Resolution analyzer.Resolution          `json:"resolution"`
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "Extract references from every model",
		Long: `Scan every model file and list the refs, sources, CTEs and config
settings found in it, along with extraction warnings.`,
		Example: `  # List extracted references
  modelgraph parse

  # Full records as JSON
  modelgraph parse -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runParse(cmd)
		},
	}
}

func runParse(cmd *cobra.Command) error {
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
	c.Hooks.EmitAnalysisComplete("parse", a.Records())

	if r.EffectiveMode() == output.ModeJSON {
		warnings := a.Warnings()
		if warnings == nil {
			warnings = []analyzer.StructuralWarning{}
		}
		return r.JSON(ParseOutput{
			Files:      an.Result.Files,
			Models:     a.Records(),
			Warnings:   warnings,
			Resolution: a.Resolution(),
		})
	}

	reportWarnings(r, an)
	r.Header(1, fmt.Sprintf("Parsed %d files", an.Result.Files))
	rows := make([][]string, 0, len(a.Records()))
	for _, rec := range a.Records() {
		rows = append(rows, []string{
			rec.ID,
			output.FormatList(rec.Refs),
			output.FormatList(rec.SourceIDs()),
			output.FormatList(rec.CTEs),
			formatConfig(rec.Config),
		})
	}
	r.Table([]string{"Model", "Refs", "Sources", "CTEs", "Config"}, rows)

	res := a.Resolution()
	r.Println("")
	r.KeyValue("References", strconv.Itoa(res.Total))
	r.KeyValue("Resolved", fmt.Sprintf("%d (%.0f%%)", res.Resolved, res.Rate*100))
	if len(res.Unresolved) > 0 {
		r.KeyValue("Unresolved", output.FormatList(res.Unresolved))
	}
	return nil
}

func formatConfig(cfg map[string]string) string {
	if len(cfg) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(cfg))
	for _, k := range sortedKeys(cfg) {
		parts = append(parts, k+"="+cfg[k])
	}
	return strings.Join(parts, ", ")
}
