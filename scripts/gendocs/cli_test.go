package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanExample(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no indent", "modelgraph graph", "modelgraph graph"},
		{"common indent", "  # Graph\n  modelgraph graph\n\n  modelgraph order", "# Graph\nmodelgraph graph\n\nmodelgraph order"},
		{"mixed indent", "  a\n    b", "a\n  b"},
		{"surrounding newlines", "\n    modelgraph order\n", "modelgraph order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanExample(tt.in))
		})
	}
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "a b c", cleanDescription("  a\n b\t c "))
	long := cleanDescription(string(make([]byte, 300)))
	assert.LessOrEqual(t, len(long), 200)
}

func TestGenerateCLIDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateCLIDocs(dir))

	index, err := os.ReadFile(filepath.Join(dir, "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "# CLI Reference")
	assert.Contains(t, string(index), "[`lineage`](/cli/lineage)")
	assert.Contains(t, string(index), "MODELGRAPH_PROJECT_DIR")

	page, err := os.ReadFile(filepath.Join(dir, "lineage.md"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "modelgraph lineage <model>")
	assert.Contains(t, string(page), "`--max-paths`")
	assert.Contains(t, string(page), "## Global Options")
	assert.Contains(t, string(page), "`-v`, `--verbose`")

	for _, name := range []string{"graph.md", "export.md", "doctor.md", "watch.md"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}
