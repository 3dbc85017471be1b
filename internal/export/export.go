// Package export renders a dependency graph as JSON, Graphviz DOT or
// Mermaid.
package export

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/dag"
)

// Format names an output format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatDOT     Format = "dot"
	FormatMermaid Format = "mermaid"
)

// ErrUnknownFormat is returned by Lookup for unsupported formats.
var ErrUnknownFormat = errors.New("unknown export format")

// Input is the graph to render. Nodes missing from Kinds render as models.
type Input struct {
	Graph     dag.Snapshot
	Kinds     map[string]analyzer.NodeKind
	Highlight []string
	Title     string
	// Direction is the layout direction, LR when empty.
	Direction string
}

func (in Input) kind(id string) analyzer.NodeKind {
	if k, ok := in.Kinds[id]; ok {
		return k
	}
	return analyzer.KindModel
}

func (in Input) highlighted() map[string]bool {
	out := make(map[string]bool, len(in.Highlight))
	for _, id := range in.Highlight {
		out[id] = true
	}
	return out
}

func (in Input) direction() string {
	if in.Direction == "" {
		return "LR"
	}
	return in.Direction
}

// flow returns the edges in data-flow direction, dependency first, sorted.
func (in Input) flow() []dag.Edge {
	out := make([]dag.Edge, len(in.Graph.Edges))
	for i, e := range in.Graph.Edges {
		out[i] = dag.Edge{From: e.To, To: e.From}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Renderer writes one format.
type Renderer interface {
	Render(w io.Writer, in Input) error
}

var renderers = map[Format]Renderer{
	FormatJSON:    jsonRenderer{},
	FormatDOT:     dotRenderer{},
	FormatMermaid: mermaidRenderer{},
}

// Lookup resolves a format name.
func Lookup(name string) (Renderer, error) {
	r, ok := renderers[Format(strings.ToLower(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownFormat, name, strings.Join(Formats(), ", "))
	}
	return r, nil
}

// Formats lists the supported format names.
func Formats() []string {
	out := make([]string, 0, len(renderers))
	for f := range renderers {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}
