package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/unused"
)

// NewUnusedCommand creates the unused command.
func NewUnusedCommand() *cobra.Command {
	var declareParsed bool

	cmd := &cobra.Command{
		Use:   "unused",
		Short: "Find unused sources, orphaned models and unused macros",
		Long: `Compare the models and sources declared in schema files with what the
dependency graph references.

Reports declared sources nothing reads, models with no dependencies and no
dependents, terminal models no exposure depends on, and referenced nodes
that are not declared, and macros defined in the macros directory that no
model, data test or other macro calls. When schema files declare no
models, every parsed model counts as declared.`,
		Example: `  modelgraph unused
  modelgraph unused --declare-parsed -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUnused(cmd, declareParsed)
		},
	}

	cmd.Flags().BoolVar(&declareParsed, "declare-parsed", false, "Treat every parsed model as declared")

	return cmd
}

func runUnused(cmd *cobra.Command, declareParsed bool) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	declared := an.Project.Declared
	if len(declared.Models) == 0 && !declareParsed {
		c.Logger.Debug("no models declared in metadata, declaring parsed models")
		declareParsed = true
	}
	rep := unused.Detect(an.Analyzer.Graph(), declared, unused.Options{
		Kinds:         an.Analyzer.Kinds(),
		DeclareParsed: declareParsed,
		CalledMacros:  an.Project.CalledMacros(),
	})
	c.Hooks.EmitAnalysisComplete("unused", rep)

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rep)
	}

	r.Header(1, "Unused Entities")
	if rep.Total == 0 {
		r.Success("nothing unused")
		return nil
	}
	sections := []struct {
		title string
		ids   []string
	}{
		{"Unused sources", rep.UnusedSources},
		{"Orphaned models", rep.Orphaned},
		{"Terminal models without exposures", rep.Terminal},
		{"Undeclared references", rep.Undeclared},
		{"Unused macros", rep.UnusedMacros},
	}
	for _, s := range sections {
		r.Header(2, s.title+" ("+itoa(len(s.ids))+")")
		r.List(s.ids)
		r.Println("")
	}
	r.KeyValue("Total", itoa(rep.Total))
	return nil
}
