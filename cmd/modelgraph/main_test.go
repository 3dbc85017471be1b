package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/modelgraph/internal/cli"
	"github.com/leapstack-labs/modelgraph/internal/cli/commands"
	clitest "github.com/leapstack-labs/modelgraph/internal/cli/testutil"
	"github.com/leapstack-labs/modelgraph/internal/state"
	"github.com/leapstack-labs/modelgraph/internal/testutil"
)

func run(t *testing.T, args ...string) clitest.Result {
	t.Helper()
	return clitest.Execute(t, cli.NewRootCmd(), args...)
}

func TestVersionCommand(t *testing.T) {
	res := run(t, "version")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "modelgraph v")
}

func TestHelpCommand(t *testing.T) {
	res := run(t, "--help")
	require.NoError(t, res.Err)

	for _, name := range []string{"parse", "graph", "order", "cycles", "lineage", "impact",
		"critical-path", "unused", "tests", "complexity", "duplicates", "validate", "search", "export", "watch", "init", "doctor"} {
		assert.Contains(t, res.Stdout, name)
	}
}

func TestGraphCommandJSON(t *testing.T) {
	dir := testutil.SampleProject(t)

	res := run(t, "graph", "--project-dir", dir, "--no-cache", "-o", "json")
	require.NoError(t, res.Err, res.Stderr)

	var out commands.GraphOutput
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &out))
	assert.Equal(t, 6, out.TotalNodes)
	assert.Equal(t, 4, out.TotalEdges)
	assert.True(t, out.Acyclic)
}

func TestGraphCommandMarkdown(t *testing.T) {
	dir := testutil.SampleProject(t)

	res := run(t, "graph", "--project-dir", dir, "--no-cache")
	require.NoError(t, res.Err)

	clitest.AssertNoANSI(t, res.Stdout)
	clitest.AssertValidMarkdown(t, res.Stdout)
	assert.True(t, strings.HasPrefix(res.Stdout, "# "), res.Stdout)
}

func TestCacheReuse(t *testing.T) {
	dir := testutil.SampleProject(t)
	statePath := filepath.Join(t.TempDir(), "state.db")
	args := []string{"complexity", "--project-dir", dir, "--state", statePath, "-o", "json", "-vv"}

	first := run(t, args...)
	require.NoError(t, first.Err, first.Stderr)
	assert.NotContains(t, first.Stderr, "cache hit")

	second := run(t, args...)
	require.NoError(t, second.Err, second.Stderr)
	assert.Contains(t, second.Stderr, "cache hit")
	assert.JSONEq(t, first.Stdout, second.Stdout)

	store := state.NewStore(nil)
	require.NoError(t, store.Open(context.Background(), statePath))
	defer func() { _ = store.Close() }()
	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, runs[0].ContentHash, runs[1].ContentHash)
	assert.Equal(t, 4, runs[0].Models)
}

func TestValidateRulesFlag(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"models/orders.sql": "{{ config(materialized='table') }} select 1",
	})

	res := run(t, "validate", "--project-dir", dir, "--no-cache", "-o", "json", "--rules", "config")
	require.NoError(t, res.Err, res.Stdout)

	var out commands.ValidateOutput
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &out))
	assert.Empty(t, out.Findings)
}

func TestUnknownCommandFails(t *testing.T) {
	res := run(t, "frobnicate")
	require.Error(t, res.Err)
}

func TestInvalidOutputFails(t *testing.T) {
	dir := testutil.SampleProject(t)

	res := run(t, "graph", "--project-dir", dir, "-o", "yaml")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "invalid output")
}
