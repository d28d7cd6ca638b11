package algorithms

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/dd0wney/cluso-fleetguard/pkg/fleetgraph"
	"github.com/dd0wney/cluso-fleetguard/pkg/parallel"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SPOF describes a node whose removal splits the rest of the fleet.
type SPOF struct {
	NodeID   string            `json:"nodeId"`
	Role     topology.NodeRole `json:"role"`
	Severity Severity          `json:"severity"`

	// DisconnectedAgents are the nodes outside the surviving component
	// once NodeID is removed, sorted.
	DisconnectedCount  int      `json:"disconnectedCount"`
	DisconnectedAgents []string `json:"disconnectedAgents"`

	// ImpactPercentage is DisconnectedCount / (nodes - 1) * 100.
	ImpactPercentage float64 `json:"impactPercentage"`

	// Partitions are the components cut off from the surviving component.
	Partitions [][]string `json:"partitions"`

	Recommendations []string `json:"recommendations"`
}

// SPOFOptions tunes DetectSPOFs.
type SPOFOptions struct {
	// Workers scanning removals in parallel. <= 0 means parallel.DefaultWorkers().
	Workers int

	// StopAtFirstCritical scans nodes sequentially in id order and stops
	// right after the first critical SPOF.
	StopAtFirstCritical bool

	// RecommendKind is the connection kind named in edge recommendations.
	// Empty means coordination.
	RecommendKind topology.ConnectionKind
}

// Split is the shape of the graph after one node is removed.
type Split struct {
	// Survivor is the largest remaining component with at least two nodes.
	// Ties go to the component holding the lowest index. Nil when every
	// remaining component is a single node.
	Survivor []int

	// CutOff are the remaining components other than Survivor.
	CutOff [][]int
}

// Components returns the number of remaining components.
func (s Split) Components() int {
	if s.Survivor == nil {
		return len(s.CutOff)
	}
	return len(s.CutOff) + 1
}

// Anchor returns the component new links should attach to: the survivor
// when there is one, otherwise the first cut-off component. The second
// value lists the remaining components.
func (s Split) Anchor() ([]int, [][]int) {
	if s.Survivor != nil {
		return s.Survivor, s.CutOff
	}
	if len(s.CutOff) == 0 {
		return nil, nil
	}
	return s.CutOff[0], s.CutOff[1:]
}

// Disconnected returns every cut-off node index, sorted.
func (s Split) Disconnected() []int {
	var out []int
	for _, c := range s.CutOff {
		out = append(out, c...)
	}
	slices.Sort(out)
	return out
}

// SplitWithout computes the components left when node is removed.
func SplitWithout(g *fleetgraph.Graph, node int) Split {
	components := Components(g, node)
	survivor := -1
	for i, c := range components {
		if len(c) < 2 {
			continue
		}
		if survivor < 0 || len(c) > len(components[survivor]) {
			survivor = i
		}
	}

	var s Split
	for i, c := range components {
		if i == survivor {
			s.Survivor = c
			continue
		}
		s.CutOff = append(s.CutOff, c)
	}
	return s
}

// DetectSPOFs removes each node in turn and reports those whose removal
// leaves more than one component. Results are sorted by impact descending,
// then by node id.
func DetectSPOFs(ctx context.Context, g *fleetgraph.Graph, opts SPOFOptions) ([]SPOF, error) {
	if opts.Workers <= 0 {
		opts.Workers = parallel.DefaultWorkers()
	}
	if opts.RecommendKind == "" {
		opts.RecommendKind = topology.KindCoordination
	}

	ctx, span := tracer.Start(ctx, "algorithms.DetectSPOFs",
		trace.WithAttributes(
			attribute.Int("node_count", g.NodeCount()),
			attribute.Bool("stop_at_first_critical", opts.StopAtFirstCritical),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := g.NodeCount()
	found := make([]*SPOF, n)
	if n >= 2 {
		if opts.StopAtFirstCritical {
			for i := 0; i < n; i++ {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				found[i] = evaluateRemoval(g, i, opts.RecommendKind)
				if found[i] != nil && found[i].Severity == SeverityCritical {
					span.AddEvent("short_circuit", trace.WithAttributes(attribute.String("node", g.ID(i))))
					break
				}
			}
		} else {
			err := parallel.ForEach(ctx, opts.Workers, n, func(_ context.Context, i int) error {
				found[i] = evaluateRemoval(g, i, opts.RecommendKind)
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}

	spofs := make([]SPOF, 0)
	for _, s := range found {
		if s != nil {
			spofs = append(spofs, *s)
		}
	}
	SortSPOFs(spofs)
	span.SetAttributes(attribute.Int("spof_count", len(spofs)))
	return spofs, nil
}

// SortSPOFs orders by impact descending, then by node id.
func SortSPOFs(spofs []SPOF) {
	sort.SliceStable(spofs, func(i, j int) bool {
		if spofs[i].ImpactPercentage != spofs[j].ImpactPercentage {
			return spofs[i].ImpactPercentage > spofs[j].ImpactPercentage
		}
		return spofs[i].NodeID < spofs[j].NodeID
	})
}

func evaluateRemoval(g *fleetgraph.Graph, node int, kind topology.ConnectionKind) *SPOF {
	split := SplitWithout(g, node)
	if split.Components() <= 1 {
		return nil
	}

	disconnected := split.Disconnected()
	impact := pct(len(disconnected), g.NodeCount()-1)
	s := &SPOF{
		NodeID:             g.ID(node),
		Role:               g.Node(node).Role,
		Severity:           SeverityForImpact(impact),
		DisconnectedCount:  len(disconnected),
		DisconnectedAgents: idsOf(g, disconnected),
		ImpactPercentage:   impact,
		Partitions:         make([][]string, len(split.CutOff)),
	}
	for i, c := range split.CutOff {
		s.Partitions[i] = idsOf(g, c)
	}
	s.Recommendations = recommend(g, node, split, s, kind)
	return s
}

// LinkTarget picks the node in anchor that new links should attach to: the
// best ranked by RankLinkTargets.
func LinkTarget(g *fleetgraph.Graph, node int, anchor []int) int {
	return RankLinkTargets(g, node, anchor)[0]
}

func recommend(g *fleetgraph.Graph, node int, split Split, s *SPOF, kind topology.ConnectionKind) []string {
	recs := make([]string, 0, 4)
	id := g.ID(node)

	if anchor, rest := split.Anchor(); len(rest) > 0 {
		target := LinkTarget(g, node, anchor)
		recs = append(recs, fmt.Sprintf("add a redundant %s edge between %s and %s",
			kind, g.ID(rest[0][0]), g.ID(target)))
	}
	if s.Role == topology.RoleCoordinator {
		recs = append(recs, fmt.Sprintf("provision a standby coordinator for %s", id))
	}
	if s.Severity == SeverityCritical {
		recs = append(recs, fmt.Sprintf("configure failover and health checks for %s", id))
	}
	if len(s.Partitions) > 1 {
		recs = append(recs, fmt.Sprintf("interconnect the %d partitions cut off by %s", len(s.Partitions), id))
	}
	return recs
}

func pct(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
