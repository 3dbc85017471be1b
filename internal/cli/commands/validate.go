package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/validate"
)

// ErrValidationFailed is returned when validation reports errors.
var ErrValidationFailed = errors.New("validation failed")

// ValidateOutput is the JSON output of the validate command.
type ValidateOutput struct {
	Findings []validate.Finding `json:"findings"`
	Summary  validate.Summary   `json:"summary"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var severity string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check naming, config, reference and documentation rules",
		Long: `Check every model against the validation rule groups:

  naming  layer prefixes (stg_, int_, fct_/dim_) and snake_case names
  config  known materializations and config keys
  refs    dangling references, self references and duplicate models
  docs    model and column descriptions, primary key columns and tests

Rule groups default to validate.rules in the config file, or all groups.
The command fails when any error-level finding is reported.`,
		Example: `  # Run every rule group
  modelgraph validate

  # Only reference and documentation checks
  modelgraph validate --rules refs,docs

  # Hide info-level findings
  modelgraph validate --severity warning`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, severity)
		},
	}

	cmd.Flags().StringSlice("rules", nil, "Rule groups to run: naming, config, refs, docs")
	cmd.Flags().StringVar(&severity, "severity", "info", "Minimum severity to report: error, warning, info")
	_ = cmd.RegisterFlagCompletionFunc("rules", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, len(validate.AllKinds))
		for i, k := range validate.AllKinds {
			names[i] = string(k)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func parseSeverity(s string) (validate.Severity, error) {
	for _, sev := range []validate.Severity{validate.SeverityError, validate.SeverityWarning, validate.SeverityInfo} {
		if sev.String() == strings.ToLower(s) {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q (want error, warning or info)", s)
}

func runValidate(cmd *cobra.Command, severity string) error {
	minSev, err := parseSeverity(severity)
	if err != nil {
		return err
	}
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	kinds, err := validate.ParseKinds(c.Cfg.Validation.Rules)
	if err != nil {
		return err
	}
	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}

	all := validate.Run(kinds, validate.Input{
		Records:  an.Analyzer.Records(),
		Warnings: an.Analyzer.Warnings(),
		Schemas:  an.Project.Schemas,
	})
	findings := []validate.Finding{}
	for _, f := range all {
		if f.Severity <= minSev {
			findings = append(findings, f)
		}
	}
	out := ValidateOutput{Findings: findings, Summary: validate.Summarize(findings)}
	c.Hooks.EmitAnalysisComplete("validate", out)

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(out); err != nil {
			return err
		}
	} else {
		renderFindings(r, out)
	}

	if out.Summary.Errors > 0 {
		return fmt.Errorf("%w: %d error(s)", ErrValidationFailed, out.Summary.Errors)
	}
	return nil
}

func renderFindings(r *output.Renderer, out ValidateOutput) {
	r.Header(1, "Validation")
	if len(out.Findings) == 0 {
		r.Success("no issues found")
		return
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		rows := make([][]string, 0, len(out.Findings))
		for _, f := range out.Findings {
			rows = append(rows, []string{f.Severity.String(), f.Rule, f.Model, f.Message})
		}
		r.Table([]string{"Severity", "Rule", "Model", "Message"}, rows)
	} else {
		current := ""
		for _, f := range out.Findings {
			if f.Model != current {
				if current != "" {
					r.Println("")
				}
				current = f.Model
				r.Println(r.Styles().ModelPath.Render(f.Model))
			}
			r.Printf("  %s  %s  %s\n",
				severityStyle(r, f.Severity),
				r.Styles().Bold.Render(f.Rule),
				f.Message,
			)
		}
		r.Println("")
	}

	s := out.Summary
	parts := []string{fmt.Sprintf("%d issues", s.Total)}
	if s.Errors > 0 {
		parts = append(parts, fmt.Sprintf("%d errors", s.Errors))
	}
	if s.Warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warnings", s.Warnings))
	}
	if s.Info > 0 {
		parts = append(parts, fmt.Sprintf("%d info", s.Info))
	}
	r.Printf("Summary: %s\n", strings.Join(parts, ", "))
}

func severityStyle(r *output.Renderer, sev validate.Severity) string {
	switch sev {
	case validate.SeverityError:
		return r.Styles().Error.Render("error  ")
	case validate.SeverityWarning:
		return r.Styles().Warning.Render("warning")
	default:
		return r.Styles().Info.Render("info   ")
	}
}
