package algorithms

import (
	"context"

	"github.com/dd0wney/cluso-fleetguard/pkg/fleetgraph"
	"github.com/dd0wney/cluso-fleetguard/pkg/parallel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultPathCap bounds the number of edge-disjoint paths counted per pair.
	DefaultPathCap = 3

	// DefaultMaxRedundancyPairs bounds the pairs evaluated per analysis.
	DefaultMaxRedundancyPairs = 20000
)

// RedundancyOptions tunes PathRedundancy.
type RedundancyOptions struct {
	PathCap  int // <= 0 means DefaultPathCap
	MaxPairs int // <= 0 means DefaultMaxRedundancyPairs
	Workers  int // <= 0 means parallel.DefaultWorkers()
}

// RedundancyResult summarizes edge-disjoint path counts over node pairs.
type RedundancyResult struct {
	// Average is the mean capped path count over evaluated connected pairs.
	Average float64

	// ConnectedPairFraction is connected pairs over all unordered pairs,
	// 1 when the graph has fewer than two nodes.
	ConnectedPairFraction float64

	TotalPairs     int
	ConnectedPairs int
	PairsEvaluated int
}

type incidence struct {
	edge int
	peer int
}

// PathRedundancy approximates path redundancy with unit-capacity max-flow
// between every connected pair, stopping each pair at PathCap augmenting
// paths. Edge direction is ignored and every logical edge has capacity one.
// When the number of connected pairs exceeds MaxPairs an evenly spaced
// sample of MaxPairs pairs, in (lower index, higher index) order, is used.
func PathRedundancy(ctx context.Context, g *fleetgraph.Graph, opts RedundancyOptions) (*RedundancyResult, error) {
	if opts.PathCap <= 0 {
		opts.PathCap = DefaultPathCap
	}
	if opts.MaxPairs <= 0 {
		opts.MaxPairs = DefaultMaxRedundancyPairs
	}
	if opts.Workers <= 0 {
		opts.Workers = parallel.DefaultWorkers()
	}

	ctx, span := tracer.Start(ctx, "algorithms.PathRedundancy",
		trace.WithAttributes(
			attribute.Int("node_count", g.NodeCount()),
			attribute.Int("path_cap", opts.PathCap),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := g.NodeCount()
	result := &RedundancyResult{ConnectedPairFraction: 1}
	if n < 2 {
		return result, nil
	}

	components := Components(g, -1)
	of := componentOf(n, components)
	position := make([]int, n) // rank of a node inside its component
	for _, members := range components {
		for rank, m := range members {
			position[m] = rank
		}
	}

	// Pairs (i, j) with i < j in the same component are numbered in order
	// of i then j. base[i] is the number of the first pair with source i.
	base := make([]int64, n+1)
	for i := 0; i < n; i++ {
		later := len(components[of[i]]) - position[i] - 1
		base[i+1] = base[i] + int64(later)
	}
	connected := base[n]

	result.TotalPairs = n * (n - 1) / 2
	result.ConnectedPairs = int(connected)
	result.ConnectedPairFraction = float64(connected) / float64(result.TotalPairs)
	if connected == 0 {
		return result, nil
	}

	sampled := func(int64) bool { return true }
	if limit := int64(opts.MaxPairs); connected > limit {
		span.AddEvent("sampling", trace.WithAttributes(attribute.Int("max_pairs", opts.MaxPairs)))
		sampled = func(k int64) bool {
			s := (k*limit + connected - 1) / connected
			return s < limit && s*connected/limit == k
		}
	}

	inc := make([][]incidence, n)
	for e, rec := range g.Edges() {
		inc[rec.From] = append(inc[rec.From], incidence{edge: e, peer: rec.To})
		inc[rec.To] = append(inc[rec.To], incidence{edge: e, peer: rec.From})
	}

	paths := make([]int64, n)
	evaluated := make([]int64, n)
	err := parallel.ForEach(ctx, opts.Workers, n, func(ctx context.Context, src int) error {
		members := components[of[src]]
		if position[src] == len(members)-1 {
			return nil
		}
		flow := newUnitFlow(g, inc)
		k := base[src]
		for _, dst := range members[position[src]+1:] {
			if sampled(k) {
				if err := ctx.Err(); err != nil {
					return err
				}
				paths[src] += int64(flow.disjointPaths(src, dst, opts.PathCap))
				evaluated[src]++
			}
			k++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var totalPaths, totalEvaluated int64
	for i := 0; i < n; i++ {
		totalPaths += paths[i]
		totalEvaluated += evaluated[i]
	}
	result.PairsEvaluated = int(totalEvaluated)
	if totalEvaluated > 0 {
		result.Average = float64(totalPaths) / float64(totalEvaluated)
	}
	span.SetAttributes(
		attribute.Int("pairs_evaluated", result.PairsEvaluated),
		attribute.Float64("average", result.Average),
	)
	return result, nil
}

// unitFlow is per-worker scratch space for unit-capacity undirected max-flow.
// flow[e] is +1 when edge e carries flow From->To, -1 for To->From.
type unitFlow struct {
	edges   []fleetgraph.EdgeRecord
	inc     [][]incidence
	flow    []int8
	via     []int // incidence edge used to reach a node, -1 for none
	from    []int
	visited []int // BFS stamp per node
	stamp   int
	queue   []int
}

func newUnitFlow(g *fleetgraph.Graph, inc [][]incidence) *unitFlow {
	n := g.NodeCount()
	return &unitFlow{
		edges:   g.Edges(),
		inc:     inc,
		flow:    make([]int8, g.EdgeCount()),
		via:     make([]int, n),
		from:    make([]int, n),
		visited: make([]int, n),
		queue:   make([]int, 0, n),
	}
}

// residual reports whether one more unit can move from u across edge e.
func (f *unitFlow) residual(u, e int) bool {
	if f.edges[e].From == u {
		return f.flow[e] < 1
	}
	return f.flow[e] > -1
}

func (f *unitFlow) push(u, e int) {
	if f.edges[e].From == u {
		f.flow[e]++
	} else {
		f.flow[e]--
	}
}

// disjointPaths counts edge-disjoint s-t paths up to limit.
func (f *unitFlow) disjointPaths(s, t, limit int) int {
	clear(f.flow)
	count := 0
	for count < limit && f.augment(s, t) {
		count++
	}
	return count
}

func (f *unitFlow) augment(s, t int) bool {
	f.stamp++
	f.visited[s] = f.stamp
	f.queue = append(f.queue[:0], s)
	for len(f.queue) > 0 && f.visited[t] != f.stamp {
		u := f.queue[0]
		f.queue = f.queue[1:]
		for _, ic := range f.inc[u] {
			if f.visited[ic.peer] == f.stamp || !f.residual(u, ic.edge) {
				continue
			}
			f.visited[ic.peer] = f.stamp
			f.via[ic.peer] = ic.edge
			f.from[ic.peer] = u
			f.queue = append(f.queue, ic.peer)
		}
	}
	if f.visited[t] != f.stamp {
		return false
	}
	for v := t; v != s; v = f.from[v] {
		f.push(f.from[v], f.via[v])
	}
	return true
}
