// Package topology defines fleet topology snapshots: agents, the weighted
// connections between them, and the providers that hand snapshots to the
// resilience engine.
//
// A Topology is immutable once constructed. Functions that derive a new
// snapshot (WithEdges, WithNode) return copies.
package topology

import (
	"time"
)

// ConnectionKind is the closed set of connection types between agents.
type ConnectionKind string

const (
	KindCoordination ConnectionKind = "coordination"
	KindData         ConnectionKind = "data"
	KindControl      ConnectionKind = "control"
	KindHeartbeat    ConnectionKind = "heartbeat"
)

// AllConnectionKinds returns every connection kind in canonical order.
func AllConnectionKinds() []ConnectionKind {
	return []ConnectionKind{KindCoordination, KindData, KindControl, KindHeartbeat}
}

// Valid reports whether k is one of the known kinds.
func (k ConnectionKind) Valid() bool {
	switch k {
	case KindCoordination, KindData, KindControl, KindHeartbeat:
		return true
	}
	return false
}

// NodeRole is the role an agent plays in the fleet.
type NodeRole string

const (
	RoleCoordinator NodeRole = "coordinator"
	RoleWorker      NodeRole = "worker"
	RoleObserver    NodeRole = "observer"
)

// NodeStatus is the operational status reported by fleet management.
type NodeStatus string

const (
	StatusActive   NodeStatus = "active"
	StatusIdle     NodeStatus = "idle"
	StatusBusy     NodeStatus = "busy"
	StatusDegraded NodeStatus = "degraded"
	StatusOffline  NodeStatus = "offline"
)

// Priority is the agent's priority tier.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Mode is the declared topology shape of the fleet.
type Mode string

const (
	ModeHierarchical Mode = "hierarchical"
	ModeMesh         Mode = "mesh"
	ModeRing         Mode = "ring"
	ModeStar         Mode = "star"
	ModeHybrid       Mode = "hybrid"
	ModeAdaptive     Mode = "adaptive"
)

// Node is one agent in the fleet.
type Node struct {
	ID       string         `json:"id" yaml:"id" validate:"required,identifier"`
	Type     string         `json:"type,omitempty" yaml:"type,omitempty" validate:"max=64"`
	Role     NodeRole       `json:"role" yaml:"role" validate:"required,oneof=coordinator worker observer"`
	Status   NodeStatus     `json:"status,omitempty" yaml:"status,omitempty" validate:"omitempty,oneof=active idle busy degraded offline"`
	Priority Priority       `json:"priority,omitempty" yaml:"priority,omitempty" validate:"omitempty,oneof=low normal high critical"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Edge is a weighted connection between two agents. A bidirectional edge is
// one logical connection usable in both directions.
type Edge struct {
	ID            string         `json:"id" yaml:"id" validate:"required,identifier"`
	Source        string         `json:"source" yaml:"source" validate:"required"`
	Target        string         `json:"target" yaml:"target" validate:"required"`
	Kind          ConnectionKind `json:"kind" yaml:"kind" validate:"required,oneof=coordination data control heartbeat"`
	Weight        float64        `json:"weight" yaml:"weight"`
	Bidirectional bool           `json:"bidirectional" yaml:"bidirectional"`
}

// Topology is an immutable snapshot of the fleet's communication graph.
type Topology struct {
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	Mode      Mode      `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=hierarchical mesh ring star hybrid adaptive"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Nodes     []Node    `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges     []Edge    `json:"edges" yaml:"edges" validate:"dive"`
}
