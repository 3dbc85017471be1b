package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/modelgraph/internal/config"
	"github.com/leapstack-labs/modelgraph/internal/coverage"
	"github.com/leapstack-labs/modelgraph/internal/testutil"
)

// execute runs cmd against the project in dir with JSON output and the
// cache disabled, returning stdout.
func execute(t *testing.T, cmd *cobra.Command, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MODELGRAPH_PROJECT_DIR", dir)
	t.Setenv("MODELGRAPH_OUTPUT", "json")
	t.Setenv("MODELGRAPH_CACHE__ENABLED", "false")
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(WithConfig(context.Background(), cfg))
	return out.String(), err
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func TestCommandDefinitions(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewParseCommand(), "parse", nil},
		{NewGraphCommand(), "graph [model]", []string{"top", "select", "exclude"}},
		{NewOrderCommand(), "order", []string{"strict", "select", "exclude"}},
		{NewCyclesCommand(), "cycles", []string{"fail"}},
		{NewLineageCommand(), "lineage <model>", []string{"upstream", "downstream", "depth", "to", "max-paths"}},
		{NewImpactCommand(), "impact [model...]", []string{"min-count"}},
		{NewUnusedCommand(), "unused", []string{"declare-parsed"}},
		{NewTestsCommand(), "tests", []string{"model", "fail-under"}},
		{NewComplexityCommand(), "complexity", []string{"top", "threshold", "model"}},
		{NewDuplicatesCommand(), "duplicates", []string{"threshold", "method"}},
		{NewValidateCommand(), "validate", []string{"rules", "severity"}},
		{NewSearchCommand(), "search <query>", []string{"limit"}},
		{NewExportCommand(), "export", []string{"format", "model", "depth", "out", "title", "direction", "select", "exclude"}},
		{NewWatchCommand(), "watch", []string{"debounce"}},
		{NewInitCommand(), "init [directory]", []string{"force", "example"}},
		{NewDoctorCommand(), "doctor", nil},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	dir := testutil.SampleProject(t)

	out, err := execute(t, NewParseCommand(), dir)
	require.NoError(t, err)

	got := decode[ParseOutput](t, out)
	assert.Equal(t, 4, got.Files)
	require.Len(t, got.Models, 4)
	assert.Equal(t, "fct_event_dates", got.Models[0].ID)
	assert.Equal(t, []string{"stg_events", "stg_dates"}, got.Models[0].Refs)
	assert.Equal(t, 2, got.Resolution.Total)
	assert.Equal(t, 2, got.Resolution.Resolved)
}

func TestGraphCommand(t *testing.T) {
	dir := testutil.SampleProject(t)

	out, err := execute(t, NewGraphCommand(), dir)
	require.NoError(t, err)

	got := decode[GraphOutput](t, out)
	assert.Equal(t, 6, got.TotalNodes)
	assert.Equal(t, 4, got.TotalEdges)
	assert.True(t, got.Acyclic)
	assert.Equal(t, []string{"raw.dates", "raw.events"}, got.Sources)
	assert.Contains(t, got.Isolated, "stg_orphan")
}

func TestOrderCommand(t *testing.T) {
	dir := testutil.SampleProject(t)

	out, err := execute(t, NewOrderCommand(), dir)
	require.NoError(t, err)

	got := decode[OrderOutput](t, out)
	assert.True(t, got.Acyclic)
	require.Len(t, got.Order, 6)
	pos := make(map[string]int, len(got.Order))
	for i, id := range got.Order {
		pos[id] = i
	}
	assert.Less(t, pos["raw.events"], pos["stg_events"])
	assert.Less(t, pos["stg_events"], pos["fct_event_dates"])
	assert.Less(t, pos["stg_dates"], pos["fct_event_dates"])
}

func TestSelectFlags(t *testing.T) {
	dir := testutil.SampleProject(t)

	t.Run("graph", func(t *testing.T) {
		out, err := execute(t, NewGraphCommand(), dir, "--select", "+fct_event_dates", "--exclude", "kind:source")
		require.NoError(t, err)
		got := decode[GraphOutput](t, out)
		assert.Equal(t, 3, got.TotalNodes)
		assert.Equal(t, 2, got.TotalEdges)
		assert.Equal(t, []string{"fct_event_dates", "stg_dates", "stg_events"}, got.Models)
		assert.Empty(t, got.Sources)
		assert.Equal(t, []string{"stg_dates", "stg_events"}, got.Roots)
		assert.Equal(t, []string{"fct_event_dates"}, got.Leaves)
		assert.Empty(t, got.Isolated)
	})

	t.Run("order", func(t *testing.T) {
		tests := []struct {
			selector string
			want     []string
		}{
			{"tag:staging", []string{"stg_dates", "stg_events"}},
			{"tested:false", []string{"stg_dates", "stg_orphan"}},
			{"source:raw+1", []string{"raw.dates", "raw.events", "stg_dates", "stg_events"}},
		}
		for _, tt := range tests {
			out, err := execute(t, NewOrderCommand(), dir, "-s", tt.selector)
			require.NoError(t, err)
			got := decode[OrderOutput](t, out)
			assert.ElementsMatch(t, tt.want, got.Order, tt.selector)
		}
	})

	t.Run("export", func(t *testing.T) {
		out, err := execute(t, NewExportCommand(), dir, "--format", "dot", "--select", "stg_events+")
		require.NoError(t, err)
		assert.Contains(t, out, `"stg_events" -> "fct_event_dates";`)
		assert.NotContains(t, out, "stg_dates")
		assert.NotContains(t, out, "raw.events")
	})

	t.Run("bad selector", func(t *testing.T) {
		_, err := execute(t, NewGraphCommand(), dir, "--select", "owner:me")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown method")
	})
}

func TestTestsCommand(t *testing.T) {
	dir := testutil.SampleProject(t)

	out, err := execute(t, NewTestsCommand(), dir)
	require.NoError(t, err)
	got := decode[TestsOutput](t, out)
	require.Len(t, got.Tests, 4)
	assert.Equal(t, "unique", got.Tests[0].Name)
	assert.Equal(t, "id", got.Tests[0].Column)
	assert.Equal(t, "relationships", got.Tests[2].Name)
	assert.Equal(t, "ref('stg_dates')", got.Tests[2].Config["to"])
	assert.Equal(t, coverage.KindData, got.Tests[3].Kind)
	assert.Equal(t, "fct_event_dates", got.Tests[3].Model)

	assert.Equal(t, 4, got.Coverage.TotalModels)
	assert.Equal(t, 2, got.Coverage.TestedModels)
	assert.Equal(t, []string{"stg_dates", "stg_orphan"}, got.Coverage.Untested)
	assert.InDelta(t, 50.0, got.Coverage.Percent, 1e-9)

	out, err = execute(t, NewTestsCommand(), dir, "--model", "fct_event_dates")
	require.NoError(t, err)
	got = decode[TestsOutput](t, out)
	require.Len(t, got.Tests, 1)
	assert.Equal(t, "assert_positive_ids", got.Tests[0].Name)

	_, err = execute(t, NewTestsCommand(), dir, "--model", "fct_event_date")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean")

	_, err = execute(t, NewTestsCommand(), dir, "--fail-under", "75")
	require.ErrorIs(t, err, ErrCoverageTooLow)
}

func TestCyclesCommand(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"models/a.sql": "select * from {{ ref('b') }}",
		"models/b.sql": "select * from {{ ref('a') }}",
		"models/c.sql": "select * from {{ ref('a') }}",
	})

	out, err := execute(t, NewCyclesCommand(), dir)
	require.NoError(t, err)
	got := decode[CyclesOutput](t, out)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, [][]string{{"a", "b"}}, got.Cycles)

	_, err = execute(t, NewCyclesCommand(), dir, "--fail")
	require.Error(t, err)

	_, err = execute(t, NewOrderCommand(), dir, "--strict")
	require.Error(t, err)
}

func TestLineageCommand(t *testing.T) {
	dir := testutil.SampleProject(t)

	t.Run("lineage", func(t *testing.T) {
		out, err := execute(t, NewLineageCommand(), dir, "stg_events")
		require.NoError(t, err)
		got := decode[map[string]any](t, out)
		assert.Equal(t, "stg_events", got["id"])
		assert.Equal(t, []any{"raw.events"}, got["upstream"])
		assert.Equal(t, []any{"fct_event_dates"}, got["downstream"])
	})

	t.Run("paths", func(t *testing.T) {
		out, err := execute(t, NewLineageCommand(), dir, "raw.events", "--to", "fct_event_dates")
		require.NoError(t, err)
		got := decode[PathsOutput](t, out)
		assert.Equal(t, 1, got.Count)
		assert.Equal(t, [][]string{{"raw.events", "stg_events", "fct_event_dates"}}, got.Paths)
	})

	t.Run("unknown model suggests names", func(t *testing.T) {
		_, err := execute(t, NewLineageCommand(), dir, "stg_event")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "did you mean")
		assert.Contains(t, err.Error(), "stg_events")
	})
}

func TestImpactCommand(t *testing.T) {
	dir := testutil.SampleProject(t)

	out, err := execute(t, NewImpactCommand(), dir, "raw.events")
	require.NoError(t, err)
	got := decode[map[string]any](t, out)
	reports, ok := got["reports"].([]any)
	require.True(t, ok)
	require.Len(t, reports, 1)
	rep := reports[0].(map[string]any)
	assert.Equal(t, []any{"fct_event_dates", "stg_events"}, rep["affected"])
	assert.Nil(t, got["combined"])

	out, err = execute(t, NewImpactCommand(), dir, "raw.events", "raw.dates")
	require.NoError(t, err)
	got = decode[map[string]any](t, out)
	assert.NotNil(t, got["combined"])
}

func TestUnusedCommand(t *testing.T) {
	dir := testutil.SampleProject(t)

	out, err := execute(t, NewUnusedCommand(), dir)
	require.NoError(t, err)
	got := decode[map[string]any](t, out)
	assert.Equal(t, []any{"raw.clicks"}, got["unused_sources"])
	assert.Contains(t, got["orphaned"], "stg_orphan")
	assert.Contains(t, got["orphaned"], "legacy_orders")
	assert.Equal(t, []any{"to_dollars"}, got["unused_macros"])
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"models/staging/stg_orders.sql": "{{ config(materialized='tabel') }} select 1",
	})

	out, err := execute(t, NewValidateCommand(), dir, "--severity", "warning")
	require.ErrorIs(t, err, ErrValidationFailed)
	got := decode[ValidateOutput](t, out)
	rules := make([]string, 0, len(got.Findings))
	for _, f := range got.Findings {
		rules = append(rules, f.Rule)
	}
	assert.Contains(t, rules, "invalid-materialization")
	assert.Equal(t, 1, got.Summary.Errors)

	_, err = execute(t, NewValidateCommand(), dir, "--severity", "fatal")
	require.Error(t, err)
}

func TestValidateDocsRules(t *testing.T) {
	dir := testutil.SampleProject(t)
	t.Setenv("MODELGRAPH_VALIDATE__RULES", "docs")

	out, err := execute(t, NewValidateCommand(), dir)
	require.NoError(t, err)
	got := decode[ValidateOutput](t, out)

	byModel := make(map[string][]string)
	for _, f := range got.Findings {
		byModel[f.Model] = append(byModel[f.Model], f.Rule)
	}
	assert.Equal(t, []string{"column-description"}, byModel["stg_events"])
	assert.Equal(t, []string{"column-description", "model-description", "primary-key-column", "primary-key-test"}, byModel["stg_dates"])
	assert.Zero(t, got.Summary.Errors)
}

func TestSearchCommand(t *testing.T) {
	dir := testutil.SampleProject(t)

	out, err := execute(t, NewSearchCommand(), dir, "stg_event", "--limit", "2")
	require.NoError(t, err)
	got := decode[[]SearchHit](t, out)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 2)
	assert.Equal(t, "stg_events", got[0].ID)
}

func TestExportCommand(t *testing.T) {
	dir := testutil.SampleProject(t)

	out, err := execute(t, NewExportCommand(), dir, "--format", "mermaid")
	require.NoError(t, err)
	assert.Contains(t, out, "graph LR")
	assert.Contains(t, out, `["stg_events"]`)
	assert.Contains(t, out, `["fct_event_dates"]`)
	assert.Contains(t, out, " --> ")

	out, err = execute(t, NewExportCommand(), dir, "--format", "dot", "--model", "stg_dates")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph")
	assert.NotContains(t, out, "stg_orphan")

	_, err = execute(t, NewExportCommand(), dir, "--format", "png")
	require.Error(t, err)
}
