// Package fleetgraph normalizes a topology snapshot into an indexed, typed,
// weighted multigraph for the resilience algorithms.
//
// Nodes are indexed in ascending id order so that every result derived from
// a Graph is independent of the order nodes and edges were listed in the
// snapshot. Each logical edge is stored once as an EdgeRecord; its directed
// adjacency entries (Arcs) are derived when the graph is built.
package fleetgraph

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
)

// EdgeRecord is the canonical record of one logical edge.
type EdgeRecord struct {
	ID            string
	From          int
	To            int
	Kind          topology.ConnectionKind
	Weight        float64
	Bidirectional bool
}

// Arc is one directed adjacency entry pointing at an EdgeRecord.
type Arc struct {
	Edge   int // index into Graph.Edges
	Peer   int // the node at the other end
	Weight float64
}

// Graph is an immutable indexed view of a topology snapshot.
type Graph struct {
	nodes     []topology.Node
	index     map[string]int
	edges     []EdgeRecord
	out       [][]Arc
	in        [][]Arc
	neighbors [][]int
	kinds     []topology.ConnectionKind
}

// Build validates nodes and edges, drops edges whose kind is not in
// allowedKinds (nil or empty means all kinds) and indexes the rest.
// Errors wrap topology.ErrInvalidTopology.
func Build(ctx context.Context, nodes []topology.Node, edges []topology.Edge, allowedKinds []topology.ConnectionKind) (*Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot := topology.Topology{Nodes: nodes, Edges: edges}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	allowed := make(map[topology.ConnectionKind]bool, len(allowedKinds))
	for _, k := range allowedKinds {
		allowed[k] = true
	}
	if len(allowed) == 0 {
		for _, k := range topology.AllConnectionKinds() {
			allowed[k] = true
		}
	}

	g := &Graph{
		nodes: slices.Clone(nodes),
		index: make(map[string]int, len(nodes)),
	}
	sort.Slice(g.nodes, func(i, j int) bool { return g.nodes[i].ID < g.nodes[j].ID })
	for i, n := range g.nodes {
		g.index[n.ID] = i
	}
	for _, k := range topology.AllConnectionKinds() {
		if allowed[k] {
			g.kinds = append(g.kinds, k)
		}
	}

	kept := make([]topology.Edge, 0, len(edges))
	for _, e := range edges {
		if allowed[e.Kind] {
			kept = append(kept, e)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })

	g.edges = make([]EdgeRecord, 0, len(kept))
	for _, e := range kept {
		g.edges = append(g.edges, EdgeRecord{
			ID:            e.ID,
			From:          g.index[e.Source],
			To:            g.index[e.Target],
			Kind:          e.Kind,
			Weight:        e.Weight,
			Bidirectional: e.Bidirectional,
		})
	}
	g.buildAdjacency()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g, nil
}

// FromTopology builds a graph from a snapshot.
func FromTopology(ctx context.Context, t *topology.Topology, allowedKinds []topology.ConnectionKind) (*Graph, error) {
	if t == nil {
		return Build(ctx, nil, nil, allowedKinds)
	}
	return Build(ctx, t.Nodes, t.Edges, allowedKinds)
}

func (g *Graph) buildAdjacency() {
	n := len(g.nodes)
	g.out = make([][]Arc, n)
	g.in = make([][]Arc, n)
	g.neighbors = make([][]int, n)

	seen := make([]map[int]bool, n)
	link := func(a, b int) {
		if seen[a] == nil {
			seen[a] = make(map[int]bool)
		}
		if !seen[a][b] {
			seen[a][b] = true
			g.neighbors[a] = append(g.neighbors[a], b)
		}
	}

	for i, e := range g.edges {
		g.out[e.From] = append(g.out[e.From], Arc{Edge: i, Peer: e.To, Weight: e.Weight})
		g.in[e.To] = append(g.in[e.To], Arc{Edge: i, Peer: e.From, Weight: e.Weight})
		if e.Bidirectional {
			g.out[e.To] = append(g.out[e.To], Arc{Edge: i, Peer: e.From, Weight: e.Weight})
			g.in[e.From] = append(g.in[e.From], Arc{Edge: i, Peer: e.To, Weight: e.Weight})
		}
		link(e.From, e.To)
		link(e.To, e.From)
	}
	for i := range g.neighbors {
		sort.Ints(g.neighbors[i])
	}
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of logical edges kept after kind filtering.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the node at index i.
func (g *Graph) Node(i int) topology.Node { return g.nodes[i] }

// ID returns the id of the node at index i.
func (g *Graph) ID(i int) string { return g.nodes[i].ID }

// IDs returns node ids in index order.
func (g *Graph) IDs() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	return ids
}

// Index returns the index of the node with the given id.
func (g *Graph) Index(id string) (int, error) {
	i, ok := g.index[id]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	return i, nil
}

// Edges returns the logical edge records. Callers must not modify them.
func (g *Graph) Edges() []EdgeRecord { return g.edges }

// Kinds returns the connection kinds the graph was built with.
func (g *Graph) Kinds() []topology.ConnectionKind { return g.kinds }

// Out returns the arcs leaving node i.
func (g *Graph) Out(i int) []Arc { return g.out[i] }

// In returns the arcs entering node i.
func (g *Graph) In(i int) []Arc { return g.in[i] }

// Neighbors returns the sorted undirected neighbors of node i.
func (g *Graph) Neighbors(i int) []int { return g.neighbors[i] }

// Adjacent reports whether an edge of any direction joins i and j.
func (g *Graph) Adjacent(i, j int) bool {
	_, found := slices.BinarySearch(g.neighbors[i], j)
	return found
}

// Capacity returns the summed weight of all edges joining i and j,
// ignoring direction.
func (g *Graph) Capacity(i, j int) float64 {
	var c float64
	for _, a := range g.out[i] {
		if a.Peer == j {
			c += a.Weight
		}
	}
	for _, a := range g.in[i] {
		if a.Peer == j && !g.edges[a.Edge].Bidirectional {
			c += a.Weight
		}
	}
	return c
}

// CapacityMatrix returns the dense undirected capacity matrix.
func (g *Graph) CapacityMatrix() [][]float64 {
	n := len(g.nodes)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for _, e := range g.edges {
		m[e.From][e.To] += e.Weight
		m[e.To][e.From] += e.Weight
	}
	return m
}

// MeanEdgeWeight returns the average logical edge weight, or 0 without edges.
func (g *Graph) MeanEdgeWeight() float64 {
	if len(g.edges) == 0 {
		return 0
	}
	var sum float64
	for _, e := range g.edges {
		sum += e.Weight
	}
	return sum / float64(len(g.edges))
}

// Topology reconstructs a snapshot containing the graph's nodes and kept edges.
func (g *Graph) Topology() *topology.Topology {
	t := &topology.Topology{Nodes: slices.Clone(g.nodes)}
	t.Edges = make([]topology.Edge, len(g.edges))
	for i, e := range g.edges {
		t.Edges[i] = topology.Edge{
			ID:            e.ID,
			Source:        g.nodes[e.From].ID,
			Target:        g.nodes[e.To].ID,
			Kind:          e.Kind,
			Weight:        e.Weight,
			Bidirectional: e.Bidirectional,
		}
	}
	return t
}
