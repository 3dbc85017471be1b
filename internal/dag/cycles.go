package dag

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// CycleError reports that an operation needed an acyclic graph.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	if len(e.Cycles) == 0 {
		return "graph is not acyclic"
	}
	first := e.Cycles[0]
	return fmt.Sprintf("graph is not acyclic: %d cycle(s), first: %s -> %s",
		len(e.Cycles), strings.Join(first, " -> "), first[0])
}

// StronglyConnected returns the strongly connected components of the graph
// using Tarjan's algorithm. Each component is sorted and the components are
// ordered by their smallest member.
func (g *Graph) StronglyConnected() [][]string {
	var (
		index   = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []string
		sccs    [][]string
		next    int
	)

	var strongconnect func(v string)
	strongconnect = func(v string) {
		index[v] = next
		lowlink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range sortedKeys(g.deps[v]) {
			if _, visited := index[w]; !visited {
				strongconnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], index[w])
			}
		}

		if lowlink[v] == index[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, id := range g.Nodes() {
		if _, visited := index[id]; !visited {
			strongconnect(id)
		}
	}

	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0] < sccs[j][0] })
	return sccs
}

// cyclic reports whether a component contains at least one cycle.
func (g *Graph) cyclic(scc []string) bool {
	return len(scc) > 1 || g.hasSelfLoop(scc[0])
}

// DetectCycles returns every elementary cycle. Cycles follow dependency
// direction, start at their smallest id, and are sorted lexicographically.
// A self-loop is reported as a one-element cycle.
func (g *Graph) DetectCycles() [][]string {
	var cycles [][]string
	for _, scc := range g.StronglyConnected() {
		if g.cyclic(scc) {
			cycles = append(cycles, g.circuits(scc)...)
		}
	}
	slices.SortFunc(cycles, slices.Compare[[]string])
	if cycles == nil {
		cycles = [][]string{}
	}
	return cycles
}

// circuits enumerates the elementary cycles inside one strongly connected
// component with Johnson's algorithm. Starting nodes are taken in ascending
// order and each search only visits larger nodes, so every cycle is found
// once, beginning at its smallest member.
func (g *Graph) circuits(scc []string) [][]string {
	member := make(map[string]bool, len(scc))
	for _, id := range scc {
		member[id] = true
	}

	var (
		cycles  [][]string
		path    []string
		blocked map[string]bool
		blockOn map[string]map[string]bool
		start   string
	)

	var unblock func(u string)
	unblock = func(u string) {
		blocked[u] = false
		for w := range blockOn[u] {
			delete(blockOn[u], w)
			if blocked[w] {
				unblock(w)
			}
		}
	}

	var circuit func(v string) bool
	circuit = func(v string) bool {
		found := false
		path = append(path, v)
		blocked[v] = true
		for _, w := range sortedKeys(g.deps[v]) {
			if !member[w] || w < start {
				continue
			}
			if w == start {
				cycles = append(cycles, slices.Clone(path))
				found = true
			} else if !blocked[w] && circuit(w) {
				found = true
			}
		}
		if found {
			unblock(v)
		} else {
			for _, w := range sortedKeys(g.deps[v]) {
				if !member[w] || w < start {
					continue
				}
				if blockOn[w] == nil {
					blockOn[w] = make(map[string]bool)
				}
				blockOn[w][v] = true
			}
		}
		path = path[:len(path)-1]
		return found
	}

	for _, s := range scc {
		start = s
		blocked = make(map[string]bool)
		blockOn = make(map[string]map[string]bool)
		circuit(s)
	}
	return cycles
}
