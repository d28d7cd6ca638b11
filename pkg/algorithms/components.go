package algorithms

import (
	"slices"

	"github.com/dd0wney/cluso-fleetguard/pkg/fleetgraph"
)

// Components returns the undirected connected components of g with node
// skip removed. Pass skip < 0 to keep every node. Each component lists node
// indices in ascending order and components are ordered by their lowest index.
func Components(g *fleetgraph.Graph, skip int) [][]int {
	n := g.NodeCount()
	visited := make([]bool, n)
	if skip >= 0 && skip < n {
		visited[skip] = true
	}

	components := make([][]int, 0)
	queue := make([]int, 0, n)
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}

		component := make([]int, 0)
		queue = append(queue[:0], start)
		visited[start] = true
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			component = append(component, current)

			// Direction is ignored for reachability
			for _, peer := range g.Neighbors(current) {
				if !visited[peer] {
					visited[peer] = true
					queue = append(queue, peer)
				}
			}
		}

		slices.Sort(component)
		components = append(components, component)
	}
	return components
}

// IsConnected reports whether g has at most one component.
func IsConnected(g *fleetgraph.Graph) bool {
	return len(Components(g, -1)) <= 1
}

// componentOf maps each node index to the position of its component, or -1
// for skipped nodes.
func componentOf(n int, components [][]int) []int {
	of := make([]int, n)
	for i := range of {
		of[i] = -1
	}
	for c, members := range components {
		for _, m := range members {
			of[m] = c
		}
	}
	return of
}

func idsOf(g *fleetgraph.Graph, indices []int) []string {
	ids := make([]string, len(indices))
	for i, idx := range indices {
		ids[i] = g.ID(idx)
	}
	return ids
}
