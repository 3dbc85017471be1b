package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/dag"
)

type jsonNode struct {
	ID          string            `json:"id"`
	Kind        analyzer.NodeKind `json:"kind"`
	DependsOn   []string          `json:"depends_on"`
	Highlighted bool              `json:"highlighted,omitempty"`
}

type jsonGraph struct {
	Title string     `json:"title,omitempty"`
	Nodes []jsonNode `json:"nodes"`
	Edges []dag.Edge `json:"edges"`
}

type jsonRenderer struct{}

func (jsonRenderer) Render(w io.Writer, in Input) error {
	hl := in.highlighted()
	deps := make(map[string][]string)
	for _, e := range in.Graph.Edges {
		deps[e.From] = append(deps[e.From], e.To)
	}
	out := jsonGraph{Title: in.Title, Nodes: make([]jsonNode, 0, len(in.Graph.Nodes)), Edges: in.Graph.Edges}
	if out.Edges == nil {
		out.Edges = []dag.Edge{}
	}
	for _, id := range in.Graph.Nodes {
		d := deps[id]
		if d == nil {
			d = []string{}
		}
		out.Nodes = append(out.Nodes, jsonNode{ID: id, Kind: in.kind(id), DependsOn: d, Highlighted: hl[id]})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type dotStyle struct {
	shape, style, fill, font string
}

var dotStyles = map[analyzer.NodeKind]dotStyle{
	analyzer.KindModel:    {"box", "filled", "#4A90D9", "white"},
	analyzer.KindSource:   {"cylinder", "filled", "#7B68EE", "white"},
	analyzer.KindDangling: {"box", "dashed", "#CCCCCC", "black"},
}

type dotRenderer struct{}

func (dotRenderer) Render(w io.Writer, in Input) error {
	title := in.Title
	if title == "" {
		title = "Dependency Graph"
	}
	hl := in.highlighted()
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", dotQuote(title))
	fmt.Fprintf(&b, "  rankdir=%s;\n", in.direction())
	b.WriteString("  node [fontname=\"Helvetica\" fontsize=10];\n")
	b.WriteString("  edge [color=\"#666666\"];\n\n")
	for _, id := range in.Graph.Nodes {
		s := dotStyles[in.kind(id)]
		fmt.Fprintf(&b, "  %s [shape=%q style=%q fillcolor=%q fontcolor=%q label=%s",
			dotQuote(id), s.shape, s.style, s.fill, s.font, dotQuote(strings.ReplaceAll(id, ".", "\n")))
		if hl[id] {
			b.WriteString(` penwidth="3" color="red"`)
		}
		b.WriteString("];\n")
	}
	b.WriteString("\n")
	for _, e := range in.flow() {
		fmt.Fprintf(&b, "  %s -> %s;\n", dotQuote(e.From), dotQuote(e.To))
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// dotQuote returns s as a DOT double-quoted string.
func dotQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

var mermaidShapes = map[analyzer.NodeKind][2]string{
	analyzer.KindModel:    {"[", "]"},
	analyzer.KindSource:   {"[(", ")]"},
	analyzer.KindDangling: {"{{", "}}"},
}

type mermaidRenderer struct{}

func (mermaidRenderer) Render(w io.Writer, in Input) error {
	var b strings.Builder
	if in.Title != "" {
		fmt.Fprintf(&b, "---\ntitle: %s\n---\n", in.Title)
	}
	fmt.Fprintf(&b, "graph %s\n", in.direction())
	// Mermaid ids are positional; the label carries the model id.
	ids := make(map[string]string, len(in.Graph.Nodes))
	for i, id := range in.Graph.Nodes {
		ids[id] = fmt.Sprintf("n%d", i)
		shape := mermaidShapes[in.kind(id)]
		fmt.Fprintf(&b, "    %s%s\"%s\"%s\n", ids[id], shape[0], strings.ReplaceAll(id, `"`, "#quot;"), shape[1])
	}
	b.WriteString("\n")
	for _, e := range in.flow() {
		fmt.Fprintf(&b, "    %s --> %s\n", ids[e.From], ids[e.To])
	}
	hl := in.highlighted()
	for _, id := range in.Graph.Nodes {
		if hl[id] {
			fmt.Fprintf(&b, "    style %s fill:#ff6b6b,stroke:#333,stroke-width:3px\n", ids[id])
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
