package algorithms

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/dd0wney/cluso-fleetguard/pkg/fleetgraph"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// randomFleet builds an n-node graph whose edges are picked by the bits of
// mask, one bit per unordered pair. Weights vary with the pair position.
func randomFleet(n int, mask uint64, extra ...topology.Edge) (*fleetgraph.Graph, error) {
	nodes := make([]topology.Node, n)
	for i := range nodes {
		nodes[i] = topology.Node{ID: fmt.Sprintf("n%d", i), Role: topology.RoleWorker}
	}

	var edges []topology.Edge
	bit := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if mask&(1<<uint(bit)) != 0 {
				edges = append(edges, topology.Edge{
					ID:            fmt.Sprintf("e%d-%d", i, j),
					Source:        nodes[i].ID,
					Target:        nodes[j].ID,
					Kind:          topology.KindControl,
					Weight:        float64(bit%3 + 1),
					Bidirectional: bit%2 == 0,
				})
			}
			bit++
		}
	}
	edges = append(edges, extra...)
	return fleetgraph.Build(context.Background(), nodes, edges, nil)
}

func countCritical(spofs []SPOF) int {
	count := 0
	for _, s := range spofs {
		if s.Severity == SeverityCritical {
			count++
		}
	}
	return count
}

// TestResilienceProperties checks idempotence and edge-addition monotonicity
// over random fleets of up to eight nodes.
func TestResilienceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150

	properties := gopter.NewProperties(parameters)
	ctx := context.Background()

	properties.Property("analysis is a pure function of the graph", prop.ForAll(
		func(n int, mask uint64) bool {
			g, err := randomFleet(n, mask)
			if err != nil {
				return false
			}
			cut1, err1 := GlobalMinCut(ctx, g)
			cut2, err2 := GlobalMinCut(ctx, g)
			spofs1, err3 := DetectSPOFs(ctx, g, SPOFOptions{Workers: 1})
			spofs2, err4 := DetectSPOFs(ctx, g, SPOFOptions{Workers: 4})
			red1, err5 := PathRedundancy(ctx, g, RedundancyOptions{Workers: 1})
			red2, err6 := PathRedundancy(ctx, g, RedundancyOptions{Workers: 3})
			if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
				return false
			}
			return reflect.DeepEqual(cut1, cut2) &&
				reflect.DeepEqual(spofs1, spofs2) &&
				reflect.DeepEqual(red1, red2)
		},
		gen.IntRange(0, 8),
		gen.UInt64(),
	))

	properties.Property("adding an edge never lowers min-cut or adds critical SPOFs", prop.ForAll(
		func(n int, mask uint64, a, b int) bool {
			a, b = a%n, b%n
			if a == b {
				return true
			}
			before, err := randomFleet(n, mask)
			if err != nil {
				return false
			}
			after, err := randomFleet(n, mask, topology.Edge{
				ID:            "extra",
				Source:        fmt.Sprintf("n%d", a),
				Target:        fmt.Sprintf("n%d", b),
				Kind:          topology.KindCoordination,
				Weight:        1,
				Bidirectional: true,
			})
			if err != nil {
				return false
			}

			cutBefore, _ := GlobalMinCut(ctx, before)
			cutAfter, _ := GlobalMinCut(ctx, after)
			spofsBefore, _ := DetectSPOFs(ctx, before, SPOFOptions{})
			spofsAfter, _ := DetectSPOFs(ctx, after, SPOFOptions{})

			return cutAfter.Value >= cutBefore.Value-1e-9 &&
				countCritical(spofsAfter) <= countCritical(spofsBefore) &&
				len(spofsAfter) <= len(spofsBefore)
		},
		gen.IntRange(2, 8),
		gen.UInt64(),
		gen.IntRange(0, 7),
		gen.IntRange(0, 7),
	))

	properties.TestingRun(t)
}
