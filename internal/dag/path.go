package dag

// LongestPath returns the longest simple path by edge count, listed from a
// root toward its dependents. Among equally long paths the one starting at
// the smallest root wins, then the lexicographically smallest path. The
// graph must be acyclic; otherwise a *CycleError is returned.
func (g *Graph) LongestPath() ([]string, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	if len(order.Nodes) == 0 {
		return []string{}, nil
	}

	// length[v] is the longest path starting at v; next[v] its successor.
	length := make(map[string]int, len(order.Nodes))
	next := make(map[string]string, len(order.Nodes))
	for i := len(order.Nodes) - 1; i >= 0; i-- {
		v := order.Nodes[i]
		for _, w := range g.DirectDependents(v) {
			if l := length[w] + 1; l > length[v] {
				length[v] = l
				next[v] = w
			}
		}
	}

	var start string
	best := -1
	for _, r := range g.Roots() {
		if length[r] > best {
			best = length[r]
			start = r
		}
	}

	path := []string{start}
	for v := start; next[v] != ""; v = next[v] {
		path = append(path, next[v])
	}
	return path, nil
}
