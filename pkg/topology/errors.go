package topology

import "errors"

// ErrInvalidTopology is the category every snapshot validation failure wraps.
var ErrInvalidTopology = errors.New("invalid topology")

// Specific snapshot invariant violations
var (
	ErrDuplicateNode   = errors.New("duplicate node id")
	ErrDuplicateEdge   = errors.New("duplicate edge id")
	ErrUnknownEndpoint = errors.New("edge references unknown node")
	ErrInvalidWeight   = errors.New("edge weight must be finite and positive")
	ErrSelfLoop        = errors.New("edge connects a node to itself")
)

// Loading and provider errors
var (
	ErrUnknownFormat  = errors.New("unknown topology format")
	ErrNoSnapshot     = errors.New("no topology snapshot available")
	ErrProviderClosed = errors.New("topology provider closed")
)
