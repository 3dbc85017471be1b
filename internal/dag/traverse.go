package dag

import "sort"

// TransitiveUpstream returns every node id transitively depends on,
// excluding id itself even when a cycle leads back to it.
func (g *Graph) TransitiveUpstream(id string) []string {
	return g.reach(id, g.deps)
}

// TransitiveDownstream returns every node that transitively depends on id,
// excluding id itself.
func (g *Graph) TransitiveDownstream(id string) []string {
	return g.reach(id, g.dependents)
}

func (g *Graph) reach(id string, adj map[string]map[string]struct{}) []string {
	visited := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range adj[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}

// AffectedNodes returns the changed nodes present in the graph together
// with everything downstream of them.
func (g *Graph) AffectedNodes(changed []string) []string {
	affected := make(map[string]bool)
	for _, id := range changed {
		if !g.HasNode(id) || affected[id] {
			continue
		}
		affected[id] = true
		for _, d := range g.TransitiveDownstream(id) {
			affected[d] = true
		}
	}
	result := make([]string, 0, len(affected))
	for id := range affected {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// Depth returns the number of BFS levels reachable from id in direction dir.
// A node with no neighbors in that direction has depth 0.
func (g *Graph) Depth(id string, dir Direction) int {
	adj := g.deps
	if dir == Downstream {
		adj = g.dependents
	}
	dist := map[string]int{id: 0}
	queue := []string{id}
	maxDepth := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range adj[cur] {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[cur] + 1
			maxDepth = max(maxDepth, dist[next])
			queue = append(queue, next)
		}
	}
	return maxDepth
}
