package algorithms

import (
	"context"
	"fmt"
	"testing"

	"github.com/dd0wney/cluso-fleetguard/pkg/fleetgraph"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
)

type link struct {
	a, b   string
	weight float64
}

func nodesOf(ids ...string) []topology.Node {
	nodes := make([]topology.Node, len(ids))
	for i, id := range ids {
		nodes[i] = topology.Node{ID: id, Role: topology.RoleWorker}
	}
	return nodes
}

func edgesOf(links ...link) []topology.Edge {
	edges := make([]topology.Edge, len(links))
	for i, l := range links {
		edges[i] = topology.Edge{
			ID:            fmt.Sprintf("e%02d-%s-%s", i, l.a, l.b),
			Source:        l.a,
			Target:        l.b,
			Kind:          topology.KindCoordination,
			Weight:        l.weight,
			Bidirectional: true,
		}
	}
	return edges
}

func buildGraph(t testing.TB, nodes []topology.Node, links ...link) *fleetgraph.Graph {
	t.Helper()
	g, err := fleetgraph.Build(context.Background(), nodes, edgesOf(links...), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return g
}

// starGraph builds coordinator A with unit spokes to each of leaves.
func starGraph(t testing.TB, leaves ...string) *fleetgraph.Graph {
	t.Helper()
	nodes := append(nodesOf("A"), nodesOf(leaves...)...)
	nodes[0].Role = topology.RoleCoordinator
	links := make([]link, len(leaves))
	for i, leaf := range leaves {
		links[i] = link{"A", leaf, 1}
	}
	return buildGraph(t, nodes, links...)
}

// cycleGraph builds N0..N(n-1) joined in a ring of the given weight.
func cycleGraph(t testing.TB, n int, weight float64) *fleetgraph.Graph {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("N%d", i)
	}
	links := make([]link, n)
	for i := range ids {
		links[i] = link{ids[i], ids[(i+1)%n], weight}
	}
	return buildGraph(t, nodesOf(ids...), links...)
}

// pathGraph builds ids joined in a line of unit edges.
func pathGraph(t testing.TB, ids ...string) *fleetgraph.Graph {
	t.Helper()
	links := make([]link, 0, len(ids))
	for i := 1; i < len(ids); i++ {
		links = append(links, link{ids[i-1], ids[i], 1})
	}
	return buildGraph(t, nodesOf(ids...), links...)
}

// completeGraph builds a unit-weight clique over ids.
func completeGraph(t testing.TB, ids ...string) *fleetgraph.Graph {
	t.Helper()
	var links []link
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			links = append(links, link{ids[i], ids[j], 1})
		}
	}
	return buildGraph(t, nodesOf(ids...), links...)
}

func runRedundancy(t *testing.T, g *fleetgraph.Graph, opts RedundancyOptions) *RedundancyResult {
	t.Helper()
	res, err := PathRedundancy(context.Background(), g, opts)
	if err != nil {
		t.Fatalf("PathRedundancy failed: %v", err)
	}
	return res
}
