package fleetgraph

import "errors"

// ErrUnknownNode is returned by lookups for ids that are not in the graph.
var ErrUnknownNode = errors.New("node not in graph")
