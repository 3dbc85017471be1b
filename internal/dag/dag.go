// Package dag provides the dependency graph between models and sources.
// It supports cycle detection, topological ordering, and reachability queries.
//
// An edge from -> to means "from depends on to". Roots are nodes with no
// dependencies (typically sources); leaves are nodes nothing depends on.
package dag

import (
	"slices"
	"sort"
)

// Edge is a dependency: From depends on To.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Snapshot is a plain copy of the graph for renderers.
type Snapshot struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// Direction selects which way a traversal follows edges.
type Direction int

const (
	// Upstream follows edges toward dependencies.
	Upstream Direction = iota
	// Downstream follows edges toward dependents.
	Downstream
)

// Reader is the read-only view of a graph handed to analyzers.
type Reader interface {
	HasNode(id string) bool
	Nodes() []string
	Edges() []Edge
	NodeCount() int
	EdgeCount() int
	DirectDependencies(id string) []string
	DirectDependents(id string) []string
	TransitiveUpstream(id string) []string
	TransitiveDownstream(id string) []string
	AffectedNodes(changed []string) []string
	Depth(id string, dir Direction) int
	Roots() []string
	Leaves() []string
	TopologicalOrder() (Order, error)
	ExecutionLevels() ([][]string, error)
	StronglyConnected() [][]string
	DetectCycles() [][]string
	LongestPath() ([]string, error)
	Subgraph(ids []string) *Graph
	Snapshot() Snapshot
}

// Graph is a directed graph stored as adjacency sets in both directions.
// It is not safe for concurrent mutation; concurrent reads of a finished
// graph are safe.
type Graph struct {
	deps       map[string]map[string]struct{} // node -> dependencies
	dependents map[string]map[string]struct{} // node -> dependents
}

var _ Reader = (*Graph)(nil)

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		deps:       make(map[string]map[string]struct{}),
		dependents: make(map[string]map[string]struct{}),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	if _, exists := g.deps[id]; exists {
		return
	}
	g.deps[id] = make(map[string]struct{})
	g.dependents[id] = make(map[string]struct{})
}

// AddEdge records that from depends on to, adding both nodes if absent.
// Duplicate edges collapse; self-loops are kept.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.deps[from][to] = struct{}{}
	g.dependents[to][from] = struct{}{}
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.deps[id]
	return ok
}

// Nodes returns all node ids in ascending order.
func (g *Graph) Nodes() []string {
	ids := make([]string, 0, len(g.deps))
	for id := range g.deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns all edges ordered by From, then To.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, from := range g.Nodes() {
		for _, to := range sortedKeys(g.deps[from]) {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.deps)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, to := range g.deps {
		count += len(to)
	}
	return count
}

// DirectDependencies returns the nodes id depends on. Unknown ids yield an
// empty result.
func (g *Graph) DirectDependencies(id string) []string {
	return sortedKeys(g.deps[id])
}

// DirectDependents returns the nodes that depend on id.
func (g *Graph) DirectDependents(id string) []string {
	return sortedKeys(g.dependents[id])
}

// Roots returns nodes with no dependencies.
func (g *Graph) Roots() []string {
	var roots []string
	for id, deps := range g.deps {
		if len(deps) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns nodes with no dependents.
func (g *Graph) Leaves() []string {
	var leaves []string
	for id, dependents := range g.dependents {
		if len(dependents) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Subgraph returns a new graph containing only the given nodes and the
// edges between them. Unknown ids are ignored.
func (g *Graph) Subgraph(ids []string) *Graph {
	sub := NewGraph()
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		if g.HasNode(id) {
			keep[id] = true
			sub.AddNode(id)
		}
	}
	for id := range keep {
		for to := range g.deps[id] {
			if keep[to] {
				sub.AddEdge(id, to)
			}
		}
	}
	return sub
}

// Snapshot returns a plain copy of the node and edge sets.
func (g *Graph) Snapshot() Snapshot {
	return Snapshot{Nodes: g.Nodes(), Edges: g.Edges()}
}

func (g *Graph) hasSelfLoop(id string) bool {
	_, ok := g.deps[id][id]
	return ok
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
