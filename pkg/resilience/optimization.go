package resilience

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
)

// OptimizationType is the kind of structural edit a suggestion proposes.
type OptimizationType string

const (
	OptimizationAddEdge     OptimizationType = "add-edge"
	OptimizationRemoveEdge  OptimizationType = "remove-edge"
	OptimizationAddNode     OptimizationType = "add-node"
	OptimizationRestructure OptimizationType = "restructure"
)

// Valid reports whether t is a known optimization type.
func (t OptimizationType) Valid() bool {
	switch t {
	case OptimizationAddEdge, OptimizationRemoveEdge, OptimizationAddNode, OptimizationRestructure:
		return true
	}
	return false
}

// Effort estimates the operational cost of applying a suggestion.
type Effort int

const (
	EffortLow Effort = iota
	EffortMedium
	EffortHigh
)

// Priority ranks suggestions for operators.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var (
	ErrUnknownEffort   = errors.New("unknown effort")
	ErrUnknownPriority = errors.New("unknown priority")
)

var (
	effortNames   = []string{"low", "medium", "high"}
	priorityNames = []string{"low", "medium", "high", "critical"}
)

func (e Effort) String() string {
	if e < EffortLow || int(e) >= len(effortNames) {
		return fmt.Sprintf("Effort(%d)", int(e))
	}
	return effortNames[e]
}

func (e Effort) MarshalText() ([]byte, error) {
	if e < EffortLow || int(e) >= len(effortNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEffort, int(e))
	}
	return []byte(effortNames[e]), nil
}

func (e *Effort) UnmarshalText(text []byte) error {
	for i, name := range effortNames {
		if name == string(text) {
			*e = Effort(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownEffort, text)
}

func (p Priority) String() string {
	if p < PriorityLow || int(p) >= len(priorityNames) {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return priorityNames[p]
}

func (p Priority) MarshalText() ([]byte, error) {
	if p < PriorityLow || int(p) >= len(priorityNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPriority, int(p))
	}
	return []byte(priorityNames[p]), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	for i, name := range priorityNames {
		if name == string(text) {
			*p = Priority(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownPriority, text)
}

// Optimization is one proposed topology edit and its measured effect.
type Optimization struct {
	ID          string           `json:"id"`
	Type        OptimizationType `json:"type"`
	Description string           `json:"description"`
	TargetSPOF  string           `json:"targetSpof,omitempty"`

	// ExpectedScore is the score of the edited snapshot and
	// ExpectedImprovement its difference from the current score.
	ExpectedScore       float64 `json:"expectedScore"`
	ExpectedImprovement float64 `json:"expectedImprovement"`

	Effort   Effort   `json:"effort"`
	Priority Priority `json:"priority"`

	AddEdges    []topology.Edge `json:"addEdges,omitempty"`
	AddNode     *topology.Node  `json:"addNode,omitempty"`
	RemoveEdges []string        `json:"removeEdges,omitempty"`
}

// Apply returns t with the suggestion applied. t is not modified.
func (o Optimization) Apply(t *topology.Topology) *topology.Topology {
	if t == nil {
		t = &topology.Topology{}
	}
	var out *topology.Topology
	if o.AddNode != nil {
		out = t.WithNode(*o.AddNode, o.AddEdges...)
	} else {
		out = t.WithEdges(o.AddEdges...)
	}
	if len(o.RemoveEdges) > 0 {
		drop := make(map[string]bool, len(o.RemoveEdges))
		for _, id := range o.RemoveEdges {
			drop[id] = true
		}
		kept := out.Edges[:0]
		for _, e := range out.Edges {
			if !drop[e.ID] {
				kept = append(kept, e)
			}
		}
		out.Edges = kept
	}
	return out
}
