package project

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/modelgraph/internal/testutil"
)

func TestLoad(t *testing.T) {
	dir := testutil.SampleProject(t)
	testutil.WriteFiles(t, dir, map[string]string{
		"models/.hidden/skip.sql": "select 1",
		"models/notes.md":         "# not a model",
		"seeds/raw.sql":           "select 2",
	})

	p, err := Load(context.Background(), dir, Options{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"models/marts/fct_event_dates.sql",
		"models/staging/stg_dates.sql",
		"models/staging/stg_events.sql",
		"models/staging/stg_orphan.sql",
	}, p.Paths())
	assert.Equal(t, testutil.SampleModels["models/staging/stg_dates.sql"], p.Files["models/staging/stg_dates.sql"])
	assert.Equal(t, []string{"models/schema.yml"}, p.Metadata)

	assert.Equal(t, []string{"fct_event_dates", "legacy_orders", "stg_dates", "stg_events", "stg_orphan"}, p.Declared.Models)
	assert.Equal(t, []string{"raw.clicks", "raw.dates", "raw.events"}, p.Declared.Sources)
	assert.Equal(t, map[string][]string{"events_dashboard": {"fct_event_dates"}}, p.Declared.Exposures)
}

func TestLoad_SupportFiles(t *testing.T) {
	dir := testutil.SampleProject(t)

	p, err := Load(context.Background(), dir, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"tests/assert_positive_ids.sql"}, sortedPaths(p.DataTests))
	assert.Equal(t, []string{"macros/money.sql"}, sortedPaths(p.Macros))
	assert.Equal(t, []string{"cents", "to_dollars"}, p.Declared.Macros)
	assert.Equal(t, []string{"cents"}, p.CalledMacros())

	s, ok := p.Schema("stg_events")
	require.True(t, ok)
	assert.Equal(t, "Cleaned events", s.Description)
	assert.Equal(t, []string{"events", "staging"}, s.Tags)
	assert.Equal(t, "models/schema.yml", s.File)
	require.Len(t, s.Columns, 2)
	assert.Equal(t, []string{"unique", "not_null"}, s.Columns[0].TestNames())
	assert.Equal(t, "relationships", s.Columns[1].Tests[0].Name)
	assert.Equal(t, "d", s.Columns[1].Tests[0].Config["field"])

	s, ok = p.Schema("stg_dates")
	require.True(t, ok)
	assert.Equal(t, []string{"staging"}, s.Tags)

	_, ok = p.Schema("stg_unknown")
	assert.False(t, ok)

	inputs := p.Inputs()
	assert.Len(t, inputs, len(p.Files)+3)
	assert.Contains(t, inputs, "models/schema.yml")
	assert.Contains(t, inputs, "macros/money.sql")
}

func TestLoad_SupportDirsOptional(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"models/a.sql":       "select 1",
		"checks/a_check.sql": "select * from {{ ref('a') }}",
	})

	p, err := Load(context.Background(), dir, Options{TestsDir: "checks", MacrosDir: "nowhere"})
	require.NoError(t, err)
	assert.Equal(t, []string{"checks/a_check.sql"}, sortedPaths(p.DataTests))
	assert.Empty(t, p.Macros)
	assert.Empty(t, p.Declared.Macros)
}

func sortedPaths(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestParseSchema_TestForms(t *testing.T) {
	set, err := ParseSchema("schema.yml", []byte(`
models:
  - name: orders
    tags: finance
    tests:
      - dbt_utils.equal_rowcount:
          compare_model: ref('raw_orders')
    columns:
      - name: status
        data_tests:
          - accepted_values:
              values: [open, closed]
          - not_null
      - name: kind
        tests:
          - accepted_values: [a, b]
          - custom_check:
`))
	require.NoError(t, err)
	require.Len(t, set.Models, 1)
	m := set.Models[0]

	assert.Equal(t, []string{"finance"}, m.Tags)
	require.Len(t, m.Tests, 1)
	assert.Equal(t, "dbt_utils.equal_rowcount", m.Tests[0].Name)
	assert.Equal(t, []string{"accepted_values", "not_null"}, m.Columns[0].TestNames())
	assert.Equal(t, []any{"open", "closed"}, m.Columns[0].Tests[0].Config["values"])
	assert.Equal(t, []any{"a", "b"}, m.Columns[1].Tests[0].Config["values"])
	assert.Equal(t, "custom_check", m.Columns[1].Tests[1].Name)
	assert.Nil(t, m.Columns[1].Tests[1].Config)

	_, err = ParseSchema("bad.yml", []byte(`
models:
  - name: x
    columns:
      - name: c
        tests:
          - {a: 1, b: 2}
`))
	assert.ErrorContains(t, err, "exactly one key")
}

func TestLoad_CustomModelsDir(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"sql/a.sql": "select 1"})

	p, err := Load(context.Background(), dir, Options{ModelsDir: "sql"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sql/a.sql"}, p.Paths())
	assert.Empty(t, p.Declared.Models)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir(), Options{})
	assert.ErrorContains(t, err, "failed to open models directory")

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"models/bad.yml": "models: [unclosed"})
	_, err = Load(context.Background(), dir, Options{})
	assert.ErrorContains(t, err, "failed to parse metadata models/bad.yml")
}

func TestLoad_Cancelled(t *testing.T) {
	dir := testutil.SampleProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, dir, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseMetadata(t *testing.T) {
	d, err := ParseMetadata([]byte(`
models:
  - name: b
  - name: a
  - name: b
sources:
  - name: raw
    tables: [{name: t1}, {name: t2}]
exposures:
  - name: report
    depends_on:
      - ref('a')
      - "ref(\"b\")"
      - source('raw', 't1')
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, d.Models)
	assert.Equal(t, []string{"raw.t1", "raw.t2"}, d.Sources)
	assert.Equal(t, []string{"a", "b"}, d.Exposures["report"])
}

func TestFileKinds(t *testing.T) {
	assert.True(t, IsModelFile("a/b.SQL"))
	assert.False(t, IsModelFile("a/b.sqlx"))
	assert.True(t, IsMetadataFile("schema.yaml"))
	assert.True(t, IsMetadataFile("schema.yml"))
	assert.False(t, IsMetadataFile("schema.json"))
}

func TestWatcher(t *testing.T) {
	dir := testutil.SampleProject(t)
	models := filepath.Join(dir, "models")

	w, err := NewWatcher(models, WatchOptions{Debounce: 20 * time.Millisecond, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []string, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(changed []string) { batches <- changed }) }()

	target := filepath.Join(models, "staging", "stg_dates.sql")
	require.NoError(t, os.WriteFile(target, []byte("select 2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(models, "readme.txt"), []byte("x"), 0o644))

	select {
	case changed := <-batches:
		assert.Equal(t, []string{target}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
