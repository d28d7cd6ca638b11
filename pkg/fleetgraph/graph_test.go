package fleetgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
)

func workers(ids ...string) []topology.Node {
	nodes := make([]topology.Node, len(ids))
	for i, id := range ids {
		nodes[i] = topology.Node{ID: id, Role: topology.RoleWorker}
	}
	return nodes
}

func edge(id, from, to string, kind topology.ConnectionKind, w float64, bidi bool) topology.Edge {
	return topology.Edge{ID: id, Source: from, Target: to, Kind: kind, Weight: w, Bidirectional: bidi}
}

// TestBuild_Empty tests that an empty node set yields an empty graph
func TestBuild_Empty(t *testing.T) {
	g, err := Build(context.Background(), nil, nil, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g.NodeCount() != 0 || g.EdgeCount() != 0 {
		t.Errorf("Expected empty graph, got %d nodes %d edges", g.NodeCount(), g.EdgeCount())
	}
}

// TestBuild_SortsNodes tests that node indices follow id order
func TestBuild_SortsNodes(t *testing.T) {
	g, err := Build(context.Background(), workers("c", "a", "b"), nil, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	ids := g.IDs()
	if ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("Expected sorted ids, got %v", ids)
	}
	if i, _ := g.Index("c"); i != 2 {
		t.Errorf("Index(c) = %d, want 2", i)
	}
	if _, err := g.Index("z"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Expected ErrUnknownNode, got %v", err)
	}
}

// TestBuild_BidirectionalExpansion tests directed adjacency derivation
func TestBuild_BidirectionalExpansion(t *testing.T) {
	g, err := Build(context.Background(), workers("a", "b", "c"), []topology.Edge{
		edge("ab", "a", "b", topology.KindCoordination, 2, true),
		edge("bc", "b", "c", topology.KindData, 1, false),
	}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if g.EdgeCount() != 2 {
		t.Fatalf("Expected 2 logical edges, got %d", g.EdgeCount())
	}
	a, _ := g.Index("a")
	b, _ := g.Index("b")
	c, _ := g.Index("c")

	if len(g.Out(a)) != 1 || len(g.In(a)) != 1 {
		t.Errorf("a: expected 1 out and 1 in arc, got %d and %d", len(g.Out(a)), len(g.In(a)))
	}
	if len(g.Out(b)) != 2 || len(g.In(b)) != 1 {
		t.Errorf("b: expected 2 out and 1 in arc, got %d and %d", len(g.Out(b)), len(g.In(b)))
	}
	if len(g.Out(c)) != 0 || len(g.In(c)) != 1 {
		t.Errorf("c: expected 0 out and 1 in arc, got %d and %d", len(g.Out(c)), len(g.In(c)))
	}

	// Both arcs of the bidirectional edge share one identity.
	if g.Out(a)[0].Edge != g.In(a)[0].Edge {
		t.Error("bidirectional arcs should reference the same edge record")
	}
	if !g.Adjacent(c, b) || g.Adjacent(a, c) {
		t.Error("undirected adjacency is wrong")
	}
}

// TestBuild_KindFiltering tests that excluded kinds are dropped entirely
func TestBuild_KindFiltering(t *testing.T) {
	g, err := Build(context.Background(), workers("a", "b"), []topology.Edge{
		edge("e1", "a", "b", topology.KindHeartbeat, 1, true),
		edge("e2", "a", "b", topology.KindControl, 1, true),
	}, []topology.ConnectionKind{topology.KindControl})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g.EdgeCount() != 1 || g.Edges()[0].ID != "e2" {
		t.Errorf("Expected only e2 to survive, got %+v", g.Edges())
	}
	if kinds := g.Kinds(); len(kinds) != 1 || kinds[0] != topology.KindControl {
		t.Errorf("Kinds() = %v", kinds)
	}
}

// TestBuild_Rejects tests invalid endpoints and weights
func TestBuild_Rejects(t *testing.T) {
	tests := []struct {
		name string
		e    topology.Edge
		want error
	}{
		{"unknown endpoint", edge("e", "a", "zz", topology.KindData, 1, true), topology.ErrUnknownEndpoint},
		{"zero weight", edge("e", "a", "b", topology.KindData, 0, true), topology.ErrInvalidWeight},
		{"negative weight", edge("e", "a", "b", topology.KindData, -1, true), topology.ErrInvalidWeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(context.Background(), workers("a", "b"), []topology.Edge{tt.e}, nil)
			if !errors.Is(err, tt.want) || !errors.Is(err, topology.ErrInvalidTopology) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestBuild_Cancelled tests cancellation before indexing
func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, workers("a"), nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestCapacity tests undirected capacity summing parallel edges
func TestCapacity(t *testing.T) {
	g, err := Build(context.Background(), workers("a", "b"), []topology.Edge{
		edge("e1", "a", "b", topology.KindData, 1.5, true),
		edge("e2", "b", "a", topology.KindControl, 0.5, false),
		edge("e3", "a", "b", topology.KindHeartbeat, 1, false),
	}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	a, _ := g.Index("a")
	b, _ := g.Index("b")
	if got := g.Capacity(a, b); got != 3 {
		t.Errorf("Capacity(a,b) = %v, want 3", got)
	}
	if got := g.Capacity(b, a); got != 3 {
		t.Errorf("Capacity(b,a) = %v, want 3", got)
	}
	m := g.CapacityMatrix()
	if m[a][b] != 3 || m[b][a] != 3 || m[a][a] != 0 {
		t.Errorf("CapacityMatrix = %v", m)
	}
	if got := g.MeanEdgeWeight(); got != 1 {
		t.Errorf("MeanEdgeWeight = %v, want 1", got)
	}
	if len(g.Neighbors(a)) != 1 {
		t.Errorf("parallel edges should yield one neighbor, got %v", g.Neighbors(a))
	}
}

// TestTopologyRoundTrip tests reconstruction of the kept snapshot
func TestTopologyRoundTrip(t *testing.T) {
	g, err := Build(context.Background(), workers("b", "a"), []topology.Edge{
		edge("e1", "b", "a", topology.KindData, 2, false),
	}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	tp := g.Topology()
	if err := tp.Validate(); err != nil {
		t.Fatalf("reconstructed topology invalid: %v", err)
	}
	if tp.Edges[0].Source != "b" || tp.Edges[0].Target != "a" {
		t.Errorf("edge direction lost: %+v", tp.Edges[0])
	}
}
