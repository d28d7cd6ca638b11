// Package topologytest builds small fleet snapshots for tests and examples.
package topologytest

import (
	"fmt"
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
)

// Epoch is the fixed timestamp given to every fixture snapshot.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Link describes one bidirectional unit-weight edge.
type Link struct {
	A, B   string
	Weight float64
	Kind   topology.ConnectionKind
}

// Unit returns a unit-weight coordination link.
func Unit(a, b string) Link {
	return Link{A: a, B: b, Weight: 1, Kind: topology.KindCoordination}
}

// Worker returns an active worker node.
func Worker(id string) topology.Node {
	return topology.Node{ID: id, Type: "agent", Role: topology.RoleWorker, Status: topology.StatusActive}
}

// Coordinator returns an active coordinator node.
func Coordinator(id string) topology.Node {
	return topology.Node{ID: id, Type: "agent", Role: topology.RoleCoordinator, Status: topology.StatusActive}
}

// Build assembles a snapshot. Edge ids are derived from the link position
// and endpoints; links without a kind default to coordination.
func Build(id string, mode topology.Mode, nodes []topology.Node, links ...Link) *topology.Topology {
	t := &topology.Topology{ID: id, Mode: mode, Timestamp: Epoch, Nodes: nodes}
	for i, l := range links {
		kind := l.Kind
		if kind == "" {
			kind = topology.KindCoordination
		}
		weight := l.Weight
		if weight == 0 {
			weight = 1
		}
		t.Edges = append(t.Edges, topology.Edge{
			ID:            fmt.Sprintf("e%03d-%s-%s", i, l.A, l.B),
			Source:        l.A,
			Target:        l.B,
			Kind:          kind,
			Weight:        weight,
			Bidirectional: true,
		})
	}
	return t
}

// Star returns coordinator hub linked by unit spokes to each leaf worker.
func Star(hub string, leaves ...string) *topology.Topology {
	nodes := []topology.Node{Coordinator(hub)}
	links := make([]Link, len(leaves))
	for i, leaf := range leaves {
		nodes = append(nodes, Worker(leaf))
		links[i] = Unit(hub, leaf)
	}
	return Build("star", topology.ModeStar, nodes, links...)
}

// Ring returns n workers w0..w(n-1) joined in a cycle of the given weight.
func Ring(n int, weight float64) *topology.Topology {
	nodes := make([]topology.Node, n)
	links := make([]Link, n)
	for i := range nodes {
		nodes[i] = Worker(fmt.Sprintf("w%d", i))
	}
	for i := range nodes {
		links[i] = Link{A: nodes[i].ID, B: nodes[(i+1)%n].ID, Weight: weight}
	}
	return Build("ring", topology.ModeRing, nodes, links...)
}

// Mesh returns n workers w0..w(n-1) with a unit edge between every pair.
func Mesh(n int) *topology.Topology {
	nodes := make([]topology.Node, n)
	for i := range nodes {
		nodes[i] = Worker(fmt.Sprintf("w%d", i))
	}
	var links []Link
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			links = append(links, Unit(nodes[i].ID, nodes[j].ID))
		}
	}
	return Build("mesh", topology.ModeMesh, nodes, links...)
}

// Line returns workers joined in a path by unit edges.
func Line(ids ...string) *topology.Topology {
	nodes := make([]topology.Node, len(ids))
	var links []Link
	for i, id := range ids {
		nodes[i] = Worker(id)
		if i > 0 {
			links = append(links, Unit(ids[i-1], id))
		}
	}
	return Build("line", topology.ModeHierarchical, nodes, links...)
}
