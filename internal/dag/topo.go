package dag

import (
	"container/heap"
	"sort"
)

// Order is a topological order. Dependencies come before their dependents.
// Nodes inside a cycle are emitted together as one contiguous block, listed
// in Blocks in emission order.
type Order struct {
	Nodes   []string   `json:"nodes"`
	Blocks  [][]string `json:"blocks,omitempty"`
	Acyclic bool       `json:"acyclic"`
}

// TopologicalOrder orders the graph with Kahn's algorithm over its
// strongly connected components. Among components with no remaining
// dependencies the one with the smallest id goes first. Every node is
// always present in the result; a *CycleError is returned alongside it
// when the graph is not acyclic.
func (g *Graph) TopologicalOrder() (Order, error) {
	sccs := g.StronglyConnected()
	comp := make(map[string]int, g.NodeCount())
	for i, scc := range sccs {
		for _, id := range scc {
			comp[id] = i
		}
	}

	// Condensed edges run from a dependency component to its dependents.
	succ := make([]map[int]struct{}, len(sccs))
	indeg := make([]int, len(sccs))
	for i := range succ {
		succ[i] = make(map[int]struct{})
	}
	for from, deps := range g.deps {
		for to := range deps {
			a, b := comp[to], comp[from]
			if a == b {
				continue
			}
			if _, dup := succ[a][b]; !dup {
				succ[a][b] = struct{}{}
				indeg[b]++
			}
		}
	}

	ready := &compHeap{sccs: sccs}
	for i := range sccs {
		if indeg[i] == 0 {
			ready.items = append(ready.items, i)
		}
	}
	heap.Init(ready)

	order := Order{Nodes: make([]string, 0, g.NodeCount()), Acyclic: true}
	for ready.Len() > 0 {
		c := heap.Pop(ready).(int)
		order.Nodes = append(order.Nodes, sccs[c]...)
		if g.cyclic(sccs[c]) {
			order.Blocks = append(order.Blocks, sccs[c])
			order.Acyclic = false
		}
		for next := range succ[c] {
			indeg[next]--
			if indeg[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if !order.Acyclic {
		return order, &CycleError{Cycles: g.DetectCycles()}
	}
	return order, nil
}

// ExecutionLevels groups nodes by the length of their longest dependency
// chain. Level 0 holds the roots; nodes at level N only depend on nodes at
// lower levels.
func (g *Graph) ExecutionLevels() ([][]string, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	level := make(map[string]int, len(order.Nodes))
	maxLevel := 0
	for _, id := range order.Nodes {
		l := 0
		for dep := range g.deps[id] {
			l = max(l, level[dep]+1)
		}
		level[id] = l
		maxLevel = max(maxLevel, l)
	}

	if len(order.Nodes) == 0 {
		return [][]string{}, nil
	}
	levels := make([][]string, maxLevel+1)
	for _, id := range order.Nodes {
		levels[level[id]] = append(levels[level[id]], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

// compHeap is a min-heap of component indexes keyed by smallest member id.
type compHeap struct {
	sccs  [][]string
	items []int
}

func (h *compHeap) Len() int { return len(h.items) }
func (h *compHeap) Less(i, j int) bool {
	return h.sccs[h.items[i]][0] < h.sccs[h.items[j]][0]
}
func (h *compHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *compHeap) Push(x any)    { h.items = append(h.items, x.(int)) }
func (h *compHeap) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}
