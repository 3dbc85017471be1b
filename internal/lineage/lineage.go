// Package lineage answers upstream and downstream reachability questions
// for a single node of the dependency graph.
package lineage

import (
	"slices"
	"sort"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/dag"
)

// DefaultMaxPaths bounds Paths when the caller passes no limit.
const DefaultMaxPaths = 100

// Lineage is the upstream and downstream closure of one node.
type Lineage struct {
	ID                 string   `json:"id"`
	Upstream           []string `json:"upstream"`
	Downstream         []string `json:"downstream"`
	DirectDependencies []string `json:"direct_dependencies"`
	DirectDependents   []string `json:"direct_dependents"`
	DepthUp            int      `json:"depth_up"`
	DepthDown          int      `json:"depth_down"`
	// MaxDepth is the traversal limit used, 0 when unlimited.
	MaxDepth int `json:"max_depth,omitempty"`
}

// Tracker runs lineage queries against a finished graph.
type Tracker struct {
	graph dag.Reader
}

// NewTracker creates a tracker over graph.
func NewTracker(graph dag.Reader) *Tracker {
	return &Tracker{graph: graph}
}

// Full returns the complete lineage of id.
func (t *Tracker) Full(id string) (*Lineage, error) {
	if !t.graph.HasNode(id) {
		return nil, &analyzer.NotFoundError{ID: id}
	}
	return &Lineage{
		ID:                 id,
		Upstream:           t.graph.TransitiveUpstream(id),
		Downstream:         t.graph.TransitiveDownstream(id),
		DirectDependencies: t.graph.DirectDependencies(id),
		DirectDependents:   t.graph.DirectDependents(id),
		DepthUp:            t.graph.Depth(id, dag.Upstream),
		DepthDown:          t.graph.Depth(id, dag.Downstream),
	}, nil
}

// Bounded returns the lineage of id limited to depth hops in each
// direction. A depth of zero or less is unlimited.
func (t *Tracker) Bounded(id string, depth int) (*Lineage, error) {
	if depth <= 0 {
		return t.Full(id)
	}
	if !t.graph.HasNode(id) {
		return nil, &analyzer.NotFoundError{ID: id}
	}
	up, depthUp := t.walk(id, depth, t.graph.DirectDependencies)
	down, depthDown := t.walk(id, depth, t.graph.DirectDependents)
	return &Lineage{
		ID:                 id,
		Upstream:           up,
		Downstream:         down,
		DirectDependencies: t.graph.DirectDependencies(id),
		DirectDependents:   t.graph.DirectDependents(id),
		DepthUp:            depthUp,
		DepthDown:          depthDown,
		MaxDepth:           depth,
	}, nil
}

func (t *Tracker) walk(id string, limit int, next func(string) []string) ([]string, int) {
	visited := map[string]bool{id: true}
	frontier := []string{id}
	out := []string{}
	depth := 0
	for depth < limit && len(frontier) > 0 {
		var nextFrontier []string
		for _, cur := range frontier {
			for _, n := range next(cur) {
				if visited[n] {
					continue
				}
				visited[n] = true
				out = append(out, n)
				nextFrontier = append(nextFrontier, n)
			}
		}
		if len(nextFrontier) == 0 {
			break
		}
		depth++
		frontier = nextFrontier
	}
	sort.Strings(out)
	return out, depth
}

// Paths returns the simple paths along which data flows from the upstream
// node from to the downstream node to, in lexicographic order. At most
// maxPaths paths are returned; zero or less means DefaultMaxPaths.
func (t *Tracker) Paths(from, to string, maxPaths int) ([][]string, error) {
	for _, id := range []string{from, to} {
		if !t.graph.HasNode(id) {
			return nil, &analyzer.NotFoundError{ID: id}
		}
	}
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}

	paths := [][]string{}
	if from == to {
		return paths, nil
	}
	onPath := map[string]bool{}
	var path []string

	var visit func(cur string) bool
	visit = func(cur string) bool {
		path = append(path, cur)
		onPath[cur] = true
		defer func() {
			path = path[:len(path)-1]
			onPath[cur] = false
		}()
		if cur == to {
			paths = append(paths, slices.Clone(path))
			return len(paths) < maxPaths
		}
		for _, n := range t.graph.DirectDependents(cur) {
			if onPath[n] {
				continue
			}
			if !visit(n) {
				return false
			}
		}
		return true
	}

	visit(from)
	return paths, nil
}
