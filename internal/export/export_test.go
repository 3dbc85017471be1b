package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/dag"
)

func sample() Input {
	g := dag.NewGraph()
	g.AddEdge("stg-events", "raw.events")
	g.AddEdge("fct", "stg-events")
	g.AddEdge("fct", "ghost")
	return Input{
		Graph: g.Snapshot(),
		Kinds: map[string]analyzer.NodeKind{
			"raw.events": analyzer.KindSource,
			"ghost":      analyzer.KindDangling,
		},
		Highlight: []string{"fct"},
	}
}

func render(t *testing.T, format string, in Input) string {
	t.Helper()
	r, err := Lookup(format)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, in))
	return buf.String()
}

func TestLookup(t *testing.T) {
	for _, f := range []string{"json", "DOT", "mermaid"} {
		_, err := Lookup(f)
		assert.NoError(t, err, f)
	}

	_, err := Lookup("svg")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.ErrorContains(t, err, "dot, json, mermaid")
	assert.Equal(t, []string{"dot", "json", "mermaid"}, Formats())
}

func TestDOT(t *testing.T) {
	out := render(t, "dot", sample())

	assert.Contains(t, out, `digraph "Dependency Graph" {`)
	assert.Contains(t, out, "rankdir=LR;")
	assert.Contains(t, out, `"raw.events" [shape="cylinder" style="filled" fillcolor="#7B68EE" fontcolor="white" label="raw\nevents"];`)
	assert.Contains(t, out, `"stg-events" [shape="box" style="filled" fillcolor="#4A90D9" fontcolor="white" label="stg-events"];`)
	assert.Contains(t, out, `"ghost" [shape="box" style="dashed"`)
	assert.Contains(t, out, `label="fct" penwidth="3" color="red"];`)
	assert.Contains(t, out, `"raw.events" -> "stg-events";`)
	assert.Contains(t, out, `"stg-events" -> "fct";`)
	assert.NotContains(t, out, `"fct" -> `)
}

func TestMermaid(t *testing.T) {
	in := sample()
	in.Title = "Project"
	in.Direction = "TD"
	out := render(t, "mermaid", in)

	assert.Equal(t, `---
title: Project
---
graph TD
    n0["fct"]
    n1{{"ghost"}}
    n2[("raw.events")]
    n3["stg-events"]

    n1 --> n0
    n2 --> n3
    n3 --> n0
    style n0 fill:#ff6b6b,stroke:#333,stroke-width:3px
`, out)
}

func TestJSON(t *testing.T) {
	out := render(t, "json", sample())

	var got struct {
		Nodes []struct {
			ID          string   `json:"id"`
			Kind        string   `json:"kind"`
			DependsOn   []string `json:"depends_on"`
			Highlighted bool     `json:"highlighted"`
		} `json:"nodes"`
		Edges []dag.Edge `json:"edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	require.Len(t, got.Nodes, 4)
	assert.Equal(t, "fct", got.Nodes[0].ID)
	assert.Equal(t, []string{"ghost", "stg-events"}, got.Nodes[0].DependsOn)
	assert.True(t, got.Nodes[0].Highlighted)
	assert.Equal(t, "dangling", got.Nodes[1].Kind)
	assert.Equal(t, "source", got.Nodes[2].Kind)
	assert.Empty(t, got.Nodes[2].DependsOn)
	assert.Len(t, got.Edges, 3)
}

func TestEmptyGraph(t *testing.T) {
	out := render(t, "json", Input{})
	assert.JSONEq(t, `{"nodes": [], "edges": []}`, out)
}

func TestSimilarIDsStayDistinct(t *testing.T) {
	g := dag.NewGraph()
	g.AddEdge("raw_events", "raw.events")
	g.AddEdge("fct", "raw_events")
	in := Input{
		Graph: g.Snapshot(),
		Kinds: map[string]analyzer.NodeKind{"raw.events": analyzer.KindSource},
	}

	t.Run("dot", func(t *testing.T) {
		out := render(t, "dot", in)
		assert.Equal(t, 1, strings.Count(out, `"raw_events" [`))
		assert.Equal(t, 1, strings.Count(out, `"raw.events" [`))
		assert.Contains(t, out, `"raw.events" -> "raw_events";`)
		assert.Contains(t, out, `"raw_events" -> "fct";`)
		assert.NotContains(t, out, `"raw_events" -> "raw_events"`)
	})

	t.Run("mermaid", func(t *testing.T) {
		out := render(t, "mermaid", in)
		assert.Contains(t, out, `n1[("raw.events")]`)
		assert.Contains(t, out, `n2["raw_events"]`)
		assert.Contains(t, out, "n1 --> n2\n")
		assert.Contains(t, out, "n2 --> n0\n")
		for _, line := range strings.Split(out, "\n") {
			parts := strings.Split(strings.TrimSpace(line), " --> ")
			if len(parts) == 2 {
				assert.NotEqual(t, parts[0], parts[1], "self-loop in %q", line)
			}
		}
	})
}
