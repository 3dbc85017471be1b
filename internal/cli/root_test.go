package cli

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	clitest "github.com/leapstack-labs/modelgraph/internal/cli/testutil"
	"github.com/leapstack-labs/modelgraph/internal/hooks"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		verbosity int
		enabled   slog.Level
		disabled  slog.Level
	}{
		{verbosity: 0, enabled: slog.LevelWarn, disabled: slog.LevelInfo},
		{verbosity: 1, enabled: slog.LevelInfo, disabled: slog.LevelDebug},
		{verbosity: 2, enabled: slog.LevelDebug, disabled: slog.LevelDebug - 1},
		{verbosity: 5, enabled: slog.LevelDebug, disabled: slog.LevelDebug - 1},
	}

	for _, tt := range tests {
		t.Run(tt.enabled.String(), func(t *testing.T) {
			logger := NewLogger(&bytes.Buffer{}, tt.verbosity)
			assert.True(t, logger.Enabled(t.Context(), tt.enabled))
			assert.False(t, logger.Enabled(t.Context(), tt.disabled))
		})
	}
}

func TestNewHooks(t *testing.T) {
	buf := &bytes.Buffer{}
	reg := NewHooks(NewLogger(buf, 2))

	for _, ev := range []hooks.Event{hooks.ParseStart, hooks.ParseComplete, hooks.GraphBuilt, hooks.AnalysisComplete} {
		assert.Equal(t, 1, reg.Count(ev), "event %s", ev)
	}

	reg.EmitParseStart(3)
	reg.EmitParseComplete(&analyzer.ParseResult{Files: 3})
	reg.EmitAnalysisComplete("graph", nil)

	out := buf.String()
	assert.Contains(t, out, "parsing models")
	assert.Contains(t, out, "files=3")
	assert.Contains(t, out, "analysis=graph")
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			res := clitest.Execute(t, NewRootCmd(), "completion", shell)
			require.NoError(t, res.Err)
			assert.Contains(t, res.Stdout, "modelgraph")
		})
	}

	res := clitest.Execute(t, NewRootCmd(), "completion", "tcsh")
	require.Error(t, res.Err)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	joined := strings.Join(names, " ")
	for _, want := range []string{"version", "init", "doctor", "parse", "graph", "order", "cycles",
		"lineage", "impact", "critical-path", "unused", "tests", "complexity", "duplicates", "validate",
		"search", "export", "watch", "completion"} {
		assert.Contains(t, joined, want)
	}

	for _, flag := range []string{"config", "project-dir", "models-dir", "state", "workers", "cache-ttl", "no-cache", "verbose", "output"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}
