package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/coverage"
)

// ErrCoverageTooLow is returned when test coverage is under --fail-under.
var ErrCoverageTooLow = errors.New("test coverage too low")

// TestsOutput is the JSON output of the tests command.
type TestsOutput struct {
	Tests    []coverage.Test `json:"tests"`
	Coverage coverage.Report `json:"coverage"`
}

// NewTestsCommand creates the tests command.
func NewTestsCommand() *cobra.Command {
	var (
		model     string
		failUnder float64
	)

	cmd := &cobra.Command{
		Use:   "tests",
		Short: "List tests and model test coverage",
		Long: `List the tests declared in schema files and the data tests in the tests
directory, then report which models have at least one test.

Built-in generic tests (unique, not_null, accepted_values, relationships)
are schema tests; other generic tests are custom. A data test covers the
first model it references.`,
		Example: `  modelgraph tests
  modelgraph tests --model fct_orders
  modelgraph tests --fail-under 80`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTests(cmd, model, failUnder)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Only list the tests of this model")
	cmd.Flags().Float64Var(&failUnder, "fail-under", 0, "Fail when model coverage is below this percentage")

	return cmd
}

func runTests(cmd *cobra.Command, model string, failUnder float64) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	tests := coverage.Collect(an.Project.Schemas, an.Project.DataTests)
	out := TestsOutput{Coverage: coverage.Compute(tests, an.Analyzer.Models())}
	if model != "" {
		if _, ok := an.Analyzer.Kind(model); !ok {
			return notFound(&analyzer.NotFoundError{ID: model}, an.Analyzer)
		}
		tests = coverage.ByModel(tests, model)
	}
	out.Tests = nonNil(tests)
	c.Hooks.EmitAnalysisComplete("tests", out)

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(out); err != nil {
			return err
		}
	} else {
		renderTests(r, out)
	}

	if failUnder > 0 && out.Coverage.Percent < failUnder {
		return fmt.Errorf("%w: %s%% < %s%%", ErrCoverageTooLow, ftoa(out.Coverage.Percent), ftoa(failUnder))
	}
	return nil
}

func renderTests(r *output.Renderer, out TestsOutput) {
	r.Header(1, fmt.Sprintf("Tests (%d)", len(out.Tests)))
	rows := make([][]string, 0, len(out.Tests))
	for _, t := range out.Tests {
		target := t.Model
		if t.Column != "" {
			target += "." + t.Column
		}
		rows = append(rows, []string{t.Name, string(t.Kind), target, t.Severity})
	}
	r.Table([]string{"Test", "Kind", "Target", "Severity"}, rows)
	r.Println("")

	cov := out.Coverage
	r.Header(2, "Coverage")
	r.KeyValue("Models tested", fmt.Sprintf("%d of %d (%s%%)", cov.TestedModels, cov.TotalModels, ftoa(cov.Percent)))
	r.KeyValue("Schema tests", itoa(cov.SchemaTests))
	r.KeyValue("Custom tests", itoa(cov.CustomTests))
	r.KeyValue("Data tests", itoa(cov.DataTests))
	if len(cov.Untested) > 0 {
		r.Header(2, fmt.Sprintf("Models without tests (%d)", len(cov.Untested)))
		r.List(cov.Untested)
	}
}
