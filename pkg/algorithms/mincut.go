package algorithms

import (
	"context"
	"math"
	"slices"

	"github.com/dd0wney/cluso-fleetguard/pkg/fleetgraph"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("fleetguard.algorithms")

// MinCutResult is the weighted global minimum cut of a graph.
type MinCutResult struct {
	// Value is the total weight of the cheapest edge set whose removal
	// disconnects the graph.
	Value float64 `json:"value"`

	// Partition is the witness cut. Partition[0] holds the node with the
	// lowest id; both sides are sorted.
	Partition [2][]string `json:"partition"`
}

// GlobalMinCut computes the weighted global minimum cut of the undirected
// equivalent of g with the Stoer–Wagner algorithm. Each logical edge adds its
// weight to the capacity between its endpoints in both directions.
//
// Cost is O(V³) on the dense capacity matrix, which is fine for fleets in the
// hundreds of nodes. Larger fleets should use a max-flow based method.
//
// Graphs with fewer than two nodes have value 0 and an empty partition. A
// disconnected graph has value 0 and its first component as the witness,
// without running the algorithm. ctx is checked once per phase.
func GlobalMinCut(ctx context.Context, g *fleetgraph.Graph) (*MinCutResult, error) {
	ctx, span := tracer.Start(ctx, "algorithms.GlobalMinCut",
		trace.WithAttributes(
			attribute.Int("node_count", g.NodeCount()),
			attribute.Int("edge_count", g.EdgeCount()),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := g.NodeCount()
	result := &MinCutResult{Partition: [2][]string{{}, {}}}
	if n < 2 {
		span.AddEvent("trivial_graph")
		return result, nil
	}

	components := Components(g, -1)
	if len(components) > 1 {
		span.AddEvent("disconnected")
		rest := make([]int, 0, n-len(components[0]))
		for _, c := range components[1:] {
			rest = append(rest, c...)
		}
		slices.Sort(rest)
		result.Partition = [2][]string{idsOf(g, components[0]), idsOf(g, rest)}
		return result, nil
	}

	w := g.CapacityMatrix()
	groups := make([][]int, n)
	active := make([]int, n)
	for i := range groups {
		groups[i] = []int{i}
		active[i] = i
	}

	best := math.Inf(1)
	var bestSide []int
	weights := make([]float64, n)
	added := make([]bool, n)

	for len(active) > 1 {
		if err := ctx.Err(); err != nil {
			span.AddEvent("context_cancelled")
			return nil, err
		}

		// Maximum adjacency ordering. Ties go to the lowest surviving index.
		for _, v := range active {
			weights[v] = 0
			added[v] = false
		}
		prev, last := -1, -1
		for range active {
			sel := -1
			for _, v := range active {
				if !added[v] && (sel < 0 || weights[v] > weights[sel]) {
					sel = v
				}
			}
			added[sel] = true
			prev, last = last, sel
			for _, v := range active {
				if !added[v] {
					weights[v] += w[sel][v]
				}
			}
		}

		if cut := weights[last]; cut < best {
			best = cut
			bestSide = slices.Clone(groups[last])
		}

		// Merge last into prev.
		groups[prev] = append(groups[prev], groups[last]...)
		for _, v := range active {
			if v == prev || v == last {
				continue
			}
			w[prev][v] += w[last][v]
			w[v][prev] = w[prev][v]
		}
		active = slices.DeleteFunc(active, func(v int) bool { return v == last })
	}

	inSide := make([]bool, n)
	for _, v := range bestSide {
		inSide[v] = true
	}
	var side, rest []int
	for i := 0; i < n; i++ {
		if inSide[i] == inSide[0] {
			side = append(side, i)
		} else {
			rest = append(rest, i)
		}
	}

	result.Value = best
	result.Partition = [2][]string{idsOf(g, side), idsOf(g, rest)}
	span.SetAttributes(attribute.Float64("min_cut", best))
	return result, nil
}
