package topology

import (
	"fmt"
	"maps"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-fleetguard/pkg/validation"
)

// New creates a snapshot with a generated id and the current timestamp.
// The node and edge slices are copied.
func New(mode Mode, nodes []Node, edges []Edge) *Topology {
	t := &Topology{
		ID:        uuid.NewString(),
		Mode:      mode,
		Timestamp: time.Now().UTC(),
	}
	t.Nodes = cloneNodes(nodes)
	t.Edges = append([]Edge(nil), edges...)
	return t
}

// Validate checks struct tags and the snapshot invariants: unique node and
// edge ids, known endpoints, no self loops and finite positive weights.
// Every returned error wraps ErrInvalidTopology.
func (t *Topology) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidTopology)
	}
	if err := validation.Struct(t); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopology, err)
	}

	nodes := make(map[string]struct{}, len(t.Nodes))
	for _, n := range t.Nodes {
		if _, dup := nodes[n.ID]; dup {
			return fmt.Errorf("%w: %w: %q", ErrInvalidTopology, ErrDuplicateNode, n.ID)
		}
		nodes[n.ID] = struct{}{}
	}

	edges := make(map[string]struct{}, len(t.Edges))
	for _, e := range t.Edges {
		if err := checkEdge(e, nodes); err != nil {
			return err
		}
		if _, dup := edges[e.ID]; dup {
			return fmt.Errorf("%w: %w: %q", ErrInvalidTopology, ErrDuplicateEdge, e.ID)
		}
		edges[e.ID] = struct{}{}
	}
	return nil
}

func checkEdge(e Edge, nodes map[string]struct{}) error {
	if _, ok := nodes[e.Source]; !ok {
		return fmt.Errorf("%w: %w: edge %q source %q", ErrInvalidTopology, ErrUnknownEndpoint, e.ID, e.Source)
	}
	if _, ok := nodes[e.Target]; !ok {
		return fmt.Errorf("%w: %w: edge %q target %q", ErrInvalidTopology, ErrUnknownEndpoint, e.ID, e.Target)
	}
	if e.Source == e.Target {
		return fmt.Errorf("%w: %w: edge %q on %q", ErrInvalidTopology, ErrSelfLoop, e.ID, e.Source)
	}
	if !ValidWeight(e.Weight) {
		return fmt.Errorf("%w: %w: edge %q weight %v", ErrInvalidTopology, ErrInvalidWeight, e.ID, e.Weight)
	}
	return nil
}

// ValidWeight reports whether w is usable as an edge weight.
func ValidWeight(w float64) bool {
	return w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w)
}

// Node returns the node with the given id.
func (t *Topology) Node(id string) (Node, bool) {
	for _, n := range t.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Clone returns a deep copy of the snapshot.
func (t *Topology) Clone() *Topology {
	if t == nil {
		return nil
	}
	c := *t
	c.Nodes = cloneNodes(t.Nodes)
	c.Edges = append([]Edge(nil), t.Edges...)
	return &c
}

// WithEdges returns a new snapshot with the extra edges appended. The
// receiver is not modified.
func (t *Topology) WithEdges(extra ...Edge) *Topology {
	c := t.Clone()
	c.Edges = append(c.Edges, extra...)
	return c
}

// WithNode returns a new snapshot with node and its edges added.
func (t *Topology) WithNode(node Node, edges ...Edge) *Topology {
	c := t.Clone()
	c.Nodes = append(c.Nodes, node)
	c.Edges = append(c.Edges, edges...)
	return c
}

func cloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n
		if n.Metadata != nil {
			out[i].Metadata = maps.Clone(n.Metadata)
		}
	}
	return out
}
