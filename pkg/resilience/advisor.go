package resilience

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/algorithms"
	"github.com/dd0wney/cluso-fleetguard/pkg/fleetgraph"
	"github.com/dd0wney/cluso-fleetguard/pkg/logging"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// maxIDLength matches the identifier rule enforced on snapshots.
const maxIDLength = 128

// SuggestOptimizations proposes edits for the highest-impact critical and
// high SPOFs of result and measures each one by re-analyzing the edited
// snapshot. A nil result is computed first. Suggestions are sorted by
// ExpectedImprovement descending, then Effort ascending, then ID.
//
// Removing edges never raises this score, so remove-edge is never proposed.
func (a *Analyzer) SuggestOptimizations(ctx context.Context, result *Result, t *topology.Topology) ([]Optimization, error) {
	ctx, span := tracer.Start(ctx, "resilience.SuggestOptimizations",
		trace.WithAttributes(attribute.String("topology_id", topologyID(t))))
	defer span.End()

	start := time.Now()
	suggestions, err := guard(ctx, a.cfg.Timeout, func(ctx context.Context) ([]Optimization, error) {
		return a.suggest(ctx, result, t)
	})
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		a.logger.Warn("optimization suggestions failed", logging.TopologyID(topologyID(t)), logging.Error(err))
		return nil, err
	}

	if a.metrics != nil {
		types := make([]string, len(suggestions))
		for i, s := range suggestions {
			types[i] = string(s.Type)
		}
		a.metrics.RecordSuggestions(types, elapsed)
	}
	a.logger.Info("optimization suggestions ready",
		logging.TopologyID(topologyID(t)),
		logging.Count(len(suggestions)),
		logging.Latency(elapsed),
	)
	span.SetAttributes(attribute.Int("suggestion_count", len(suggestions)))
	return suggestions, nil
}

func (a *Analyzer) suggest(ctx context.Context, result *Result, t *topology.Topology) ([]Optimization, error) {
	cfg := a.cfg
	if result == nil {
		var err error
		if result, err = a.pipeline(ctx, t, cfg, false); err != nil {
			return nil, err
		}
	}

	g, err := fleetgraph.FromTopology(ctx, t, cfg.ConnectionTypes)
	if err != nil {
		return nil, err
	}

	b := newCandidateBuilder(g, t, cfg)
	taken := 0
	for _, s := range result.SPOFs {
		if taken == cfg.MaxSuggestions {
			break
		}
		if s.Severity < algorithms.SeverityHigh {
			continue
		}
		idx, err := g.Index(s.NodeID)
		if err != nil {
			// Result computed from another snapshot.
			continue
		}
		b.forSPOF(idx, s)
		taken++
	}

	candidates := b.candidates
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.Workers)
	for i := range candidates {
		group.Go(recovered(func() error {
			hypothetical, err := a.pipeline(groupCtx, candidates[i].Apply(t), cfg, false)
			if err != nil {
				return err
			}
			candidates[i].ExpectedScore = hypothetical.Score
			candidates[i].ExpectedImprovement = hypothetical.Score - result.Score
			if candidates[i].ExpectedImprovement <= 0 {
				candidates[i].Priority = PriorityLow
			}
			return nil
		}))
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.ExpectedImprovement != cj.ExpectedImprovement {
			return ci.ExpectedImprovement > cj.ExpectedImprovement
		}
		if ci.Effort != cj.Effort {
			return ci.Effort < cj.Effort
		}
		return ci.ID < cj.ID
	})
	return candidates, nil
}

// candidateBuilder generates unevaluated suggestions. New ids never collide
// with the snapshot or with other ids of the same suggestion.
type candidateBuilder struct {
	g          *fleetgraph.Graph
	cfg        Config
	weight     float64
	usedIDs    map[string]bool
	pending    map[string]bool
	seenEdits  map[string]bool
	candidates []Optimization
}

func newCandidateBuilder(g *fleetgraph.Graph, t *topology.Topology, cfg Config) *candidateBuilder {
	b := &candidateBuilder{
		g:         g,
		cfg:       cfg,
		weight:    g.MeanEdgeWeight(),
		usedIDs:   make(map[string]bool),
		pending:   make(map[string]bool),
		seenEdits: make(map[string]bool),
	}
	if b.weight <= 0 {
		b.weight = 1
	}
	if t != nil {
		for _, n := range t.Nodes {
			b.usedIDs[n.ID] = true
		}
		// Edges of filtered-out kinds still occupy ids in the snapshot.
		for _, e := range t.Edges {
			b.usedIDs[e.ID] = true
		}
	}
	return b
}

func (b *candidateBuilder) forSPOF(idx int, s algorithms.SPOF) {
	priority := PriorityHigh
	if s.Severity == algorithms.SeverityCritical {
		priority = PriorityCritical
	}
	kind := b.cfg.SuggestionKind

	anchor, rest := algorithms.SplitWithout(b.g, idx).Anchor()
	if len(rest) > 0 {
		b.begin()
		target := algorithms.LinkTarget(b.g, idx, anchor)
		edges := make([]topology.Edge, 0, len(rest))
		for _, part := range rest {
			edges = append(edges, b.edge(part[0], target))
		}
		effort := EffortLow
		if len(edges) > 1 {
			effort = EffortMedium
		}
		b.add(Optimization{
			ID:          fmt.Sprintf("%s/%s/all", OptimizationAddEdge, s.NodeID),
			Type:        OptimizationAddEdge,
			Description: fmt.Sprintf("add %d %s edge(s) linking the partitions cut off by %s to %s", len(edges), kind, s.NodeID, b.g.ID(target)),
			TargetSPOF:  s.NodeID,
			Effort:      effort,
			Priority:    priority,
			AddEdges:    edges,
		})

		if len(rest) > 1 {
			b.begin()
			largest := rest[0]
			for _, part := range rest[1:] {
				if len(part) > len(largest) {
					largest = part
				}
			}
			b.add(Optimization{
				ID:          fmt.Sprintf("%s/%s/largest", OptimizationAddEdge, s.NodeID),
				Type:        OptimizationAddEdge,
				Description: fmt.Sprintf("add a %s edge between %s and %s to back up %s", kind, b.g.ID(largest[0]), b.g.ID(target), s.NodeID),
				TargetSPOF:  s.NodeID,
				Effort:      EffortLow,
				Priority:    priority,
				AddEdges:    []topology.Edge{b.edge(largest[0], target)},
			})
		}
	}

	neighbors := b.g.Neighbors(idx)
	if s.Role == topology.RoleCoordinator && len(neighbors) > 0 {
		b.begin()
		spofNode := b.g.Node(idx)
		standby := topology.Node{
			ID:       b.reserve("standby-" + s.NodeID),
			Type:     spofNode.Type,
			Role:     topology.RoleCoordinator,
			Status:   topology.StatusIdle,
			Priority: topology.PriorityHigh,
		}
		edges := make([]topology.Edge, 0, len(neighbors))
		for _, nb := range neighbors {
			edges = append(edges, b.edgeByID(standby.ID, b.g.ID(nb)))
		}
		b.add(Optimization{
			ID:          fmt.Sprintf("%s/%s", OptimizationAddNode, s.NodeID),
			Type:        OptimizationAddNode,
			Description: fmt.Sprintf("add standby coordinator %s linked to the %d neighbours of %s", standby.ID, len(neighbors), s.NodeID),
			TargetSPOF:  s.NodeID,
			Effort:      EffortMedium,
			Priority:    priority,
			AddEdges:    edges,
			AddNode:     &standby,
		})
	}

	if len(neighbors) >= 2 {
		b.begin()
		var edges []topology.Edge
		roles := make(map[topology.NodeRole]bool)
		linked := make(map[[2]int]bool)
		for i, nb := range neighbors {
			roles[b.g.Node(nb).Role] = true
			next := neighbors[(i+1)%len(neighbors)]
			pair := [2]int{min(nb, next), max(nb, next)}
			if nb == next || linked[pair] || b.g.Adjacent(nb, next) {
				continue
			}
			linked[pair] = true
			edges = append(edges, b.edge(nb, next))
		}
		if len(edges) > 0 {
			effort := EffortMedium
			if len(roles) > 1 {
				effort = EffortHigh
			}
			b.add(Optimization{
				ID:          fmt.Sprintf("%s/%s", OptimizationRestructure, s.NodeID),
				Type:        OptimizationRestructure,
				Description: fmt.Sprintf("connect the %d neighbours of %s in a ring", len(neighbors), s.NodeID),
				TargetSPOF:  s.NodeID,
				Effort:      effort,
				Priority:    priority,
				AddEdges:    edges,
			})
		}
	}
}

// add keeps o unless an earlier candidate proposes the same edit.
func (b *candidateBuilder) add(o Optimization) {
	key := editKey(o)
	if b.seenEdits[key] {
		return
	}
	b.seenEdits[key] = true
	b.candidates = append(b.candidates, o)
}

func editKey(o Optimization) string {
	parts := make([]string, 0, len(o.AddEdges)+1)
	if o.AddNode != nil {
		parts = append(parts, "node:"+string(o.AddNode.Role))
	}
	for _, e := range o.AddEdges {
		a, z := e.Source, e.Target
		if a > z {
			a, z = z, a
		}
		parts = append(parts, a+"\x00"+z)
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x01")
}

func (b *candidateBuilder) edge(from, to int) topology.Edge {
	return b.edgeByID(b.g.ID(from), b.g.ID(to))
}

func (b *candidateBuilder) edgeByID(from, to string) topology.Edge {
	return topology.Edge{
		ID:            b.reserve("suggested-" + from + "-" + to),
		Source:        from,
		Target:        to,
		Kind:          b.cfg.SuggestionKind,
		Weight:        b.weight,
		Bidirectional: true,
	}
}

// begin starts a new suggestion's id scope.
func (b *candidateBuilder) begin() {
	clear(b.pending)
}

// reserve returns an id derived from base that is free in the snapshot and
// the current suggestion. Long bases are replaced by a stable hash.
func (b *candidateBuilder) reserve(base string) string {
	if len(base) > maxIDLength-4 {
		base = "fg-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(base)).String()
	}
	id := base
	for n := 2; b.usedIDs[id] || b.pending[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	b.pending[id] = true
	return id
}
