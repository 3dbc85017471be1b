package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/cli/output"
	"github.com/leapstack-labs/modelgraph/internal/complexity"
	"github.com/leapstack-labs/modelgraph/internal/unused"
	"github.com/leapstack-labs/modelgraph/internal/validate"
)

// Health check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// ProjectSummary contains project-level statistics.
type ProjectSummary struct {
	Models    int `json:"models"`
	Sources   int `json:"sources"`
	Dangling  int `json:"dangling"`
	DAGDepth  int `json:"dag_depth"`
	RootCount int `json:"root_count"`
	LeafCount int `json:"leaf_count"`
	EdgeCount int `json:"edge_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"`
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a project health check",
		Long: `Run every analysis over the project and summarize the result:

- Project summary (models, sources, graph depth)
- Health checks grouped by category (graph, references, structure, quality)
- Health score (0-100)
- Actionable recommendations`,
		Example: `  # Run health check
  modelgraph doctor

  # Output as JSON
  modelgraph doctor -o json`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}
	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	c, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	an, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	r := c.Renderer
	if len(an.Analyzer.Models()) == 0 {
		r.Warn("no models found in " + c.Cfg.ModelsDir)
		return nil
	}

	checks := healthChecks(c, an)
	summary := buildProjectSummary(an.Analyzer)
	issues := 0
	for _, hc := range checks {
		issues += hc.IssueCount
	}
	out := &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks, summary.Models),
		Recommendations: nonNil(generateRecommendations(checks)),
		IssueCount:      issues,
	}
	c.Hooks.EmitAnalysisComplete("doctor", out)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	return nil
}

func healthChecks(c *CommandContext, an *Analysis) []HealthCheck {
	a := an.Analyzer

	var dangling, duplicateIDs []string
	for _, w := range a.Warnings() {
		switch w.Kind {
		case analyzer.Dangling:
			dangling = append(dangling, w.Error())
		case analyzer.DuplicateID:
			duplicateIDs = append(duplicateIDs, w.Error())
		}
	}
	var parseIssues []string
	for _, w := range an.Result.ParseWarnings() {
		parseIssues = append(parseIssues, w.Error())
	}
	var cycles []string
	for _, cyc := range a.Cycles() {
		cycles = append(cycles, strings.Join(cyc, " -> ")+" -> "+cyc[0])
	}

	declared := an.Project.Declared
	rep := unused.Detect(a.Graph(), declared, unused.Options{
		Kinds:         a.Kinds(),
		DeclareParsed: len(declared.Models) == 0,
	})

	findings := validate.Run([]validate.Kind{validate.KindNaming, validate.KindConfig}, validate.Input{
		Records:  a.Records(),
		Warnings: a.Warnings(),
	})
	var conventions []string
	conventionStatus := statusPass
	for _, f := range findings {
		if f.Severity > validate.SeverityWarning {
			continue
		}
		conventions = append(conventions, f.Model+": "+f.Message)
		if f.Severity == validate.SeverityError {
			conventionStatus = statusError
		} else if conventionStatus == statusPass {
			conventionStatus = statusWarn
		}
	}

	scores := complexity.Rank(a.Records(), c.Cfg.Complexity.Weights)
	var complex []string
	for _, s := range scores {
		if s.Value > c.Cfg.Complexity.Threshold {
			complex = append(complex, fmt.Sprintf("%s scores %.1f", s.ID, s.Value))
		}
	}
	var dupes []string
	for _, g := range complexity.FindDuplicates(a.Records(), c.Cfg.Duplicates) {
		dupes = append(dupes, fmt.Sprintf("%s (%.0f%% similar)", strings.Join(g.Members, ", "), g.MaxSimilarity*100))
	}

	checks := []HealthCheck{
		newCheck("G01", "No dependency cycles", "graph", statusError, cycles),
		newCheck("R01", "All references resolve", "references", statusWarn, dangling),
		newCheck("R02", "Model names are unique", "references", statusError, duplicateIDs),
		newCheck("R03", "Templates parse cleanly", "references", statusWarn, parseIssues),
		newCheck("S01", "No orphaned models", "structure", statusWarn, rep.Orphaned),
		newCheck("S02", "Declared sources are used", "structure", statusWarn, rep.UnusedSources),
		newCheck("S03", "Naming and config conventions", "structure", conventionStatus, conventions),
		newCheck("Q01", "Models below complexity threshold", "quality", statusWarn, complex),
		newCheck("Q02", "No near-duplicate models", "quality", statusWarn, dupes),
	}

	sort.SliceStable(checks, func(i, j int) bool {
		if checks[i].Group != checks[j].Group {
			return checks[i].Group < checks[j].Group
		}
		return checks[i].ID < checks[j].ID
	})
	return checks
}

// newCheck builds a check that fails with failStatus when details is non-empty.
func newCheck(id, name, group, failStatus string, details []string) HealthCheck {
	hc := HealthCheck{ID: id, Name: name, Group: group, Status: statusPass, IssueCount: len(details), Details: details}
	if len(details) > 0 {
		hc.Status = failStatus
	}
	return hc
}

func buildProjectSummary(a *analyzer.Analyzer) ProjectSummary {
	g := a.Graph()
	summary := ProjectSummary{
		Models:    len(a.Models()),
		Sources:   len(a.Sources()),
		Dangling:  len(a.Dangling()),
		EdgeCount: g.EdgeCount(),
		RootCount: len(g.Roots()),
		LeafCount: len(g.Leaves()),
	}
	if levels, err := g.ExecutionLevels(); err == nil {
		summary.DAGDepth = len(levels)
	}
	return summary
}

// calculateHealthScore computes a health score from 0-100. Each issue costs
// a penalty that shrinks as the project grows; errors count double.
func calculateHealthScore(checks []HealthCheck, modelCount int) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0

	basePenalty := 5.0
	if modelCount > 10 {
		basePenalty = 3.0
	}
	if modelCount > 50 {
		basePenalty = 2.0
	}
	if modelCount > 100 {
		basePenalty = 1.0
	}

	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= float64(check.IssueCount) * basePenalty * 2
		case statusWarn:
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	return int(min(max(score, 0), 100))
}

// generateRecommendations returns up to five recommendations for the
// failing checks, errors first.
func generateRecommendations(checks []HealthCheck) []string {
	failing := make([]HealthCheck, 0, len(checks))
	for _, check := range checks {
		if check.Status != statusPass {
			failing = append(failing, check)
		}
	}
	sort.SliceStable(failing, func(i, j int) bool {
		return failing[i].Status == statusError && failing[j].Status != statusError
	})

	var recommendations []string
	for _, check := range failing {
		if rec := recommendation(check.ID); rec != "" {
			recommendations = append(recommendations, rec)
		}
	}
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}
	return recommendations
}

func recommendation(id string) string {
	switch id {
	case "G01":
		return "Break dependency cycles; run 'modelgraph cycles' to list them"
	case "R01":
		return "Create the missing models or fix the misspelled ref() names"
	case "R02":
		return "Rename models so every file produces a unique name"
	case "R03":
		return "Fix unterminated or malformed template calls"
	case "S01":
		return "Connect or remove orphaned models; run 'modelgraph unused' for details"
	case "S02":
		return "Remove declared sources nothing reads"
	case "S03":
		return "Follow layer prefixes (stg_, int_, fct_, dim_) and known config keys"
	case "Q01":
		return "Split the most complex models into smaller, focused models"
	case "Q02":
		return "Consolidate near-duplicate models; run 'modelgraph duplicates'"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("modelgraph Project Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header2.Render("Project Summary"))
	r.Printf("   Models: %d | Sources: %d | Edges: %d | Dangling: %d\n",
		out.Summary.Models, out.Summary.Sources, out.Summary.EdgeCount, out.Summary.Dangling)
	r.Printf("   DAG Depth: %d levels | Roots: %d | Leaves: %d\n", out.Summary.DAGDepth, out.Summary.RootCount, out.Summary.LeafCount)
	r.Println("")

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case statusWarn:
			icon = styles.Warning.Render("!")
		case statusError:
			icon = styles.Error.Render("✗")
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.ID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Header(1, "modelgraph Project Health Report")

	r.Header(2, "Project Summary")
	r.KeyValue("Models", itoa(out.Summary.Models))
	r.KeyValue("Sources", itoa(out.Summary.Sources))
	r.KeyValue("Edges", itoa(out.Summary.EdgeCount))
	r.KeyValue("Dangling", itoa(out.Summary.Dangling))
	r.KeyValue("DAG Depth", itoa(out.Summary.DAGDepth)+" levels")
	r.KeyValue("Root Nodes", itoa(out.Summary.RootCount))
	r.KeyValue("Leaf Nodes", itoa(out.Summary.LeafCount))
	r.Println("")

	r.Header(2, "Health Checks")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			if currentGroup != "" {
				r.Println("")
			}
			currentGroup = check.Group
			r.Header(3, titleCaser.String(currentGroup))
		}

		line := fmt.Sprintf("- **[%s]** %s: %s", strings.ToUpper(check.Status), check.ID, check.Name)
		if check.IssueCount > 0 {
			line += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println(line)
		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Header(2, "Health Score")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Header(2, "Recommendations")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}
