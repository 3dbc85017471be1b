package commands

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		info    BuildInfo
		wantOut []string
	}{
		{
			name:    "default version",
			info:    BuildInfo{Version: "0.1.0", Commit: "unknown", BuildDate: "unknown"},
			wantOut: []string{"modelgraph v0.1.0", "commit unknown", runtime.Version()},
		},
		{
			name:    "release build",
			info:    BuildInfo{Version: "1.2.3", Commit: "abc1234", BuildDate: "2026-01-02"},
			wantOut: []string{"modelgraph v1.2.3", "commit abc1234, built 2026-01-02"},
		},
		{
			name:    "dev version",
			info:    BuildInfo{Version: "dev"},
			wantOut: []string{"modelgraph vdev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.info)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs([]string{})

			require.NoError(t, cmd.Execute())
			for _, want := range tt.wantOut {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand(BuildInfo{Version: "test"})

	assert.Equal(t, "version", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}
