package resilience

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/dd0wney/cluso-fleetguard/pkg/algorithms"
	"github.com/dd0wney/cluso-fleetguard/pkg/fleetgraph"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Score blend weights. The score is
//
//	cutNorm        = min(1, minCut / (PathCap * meanEdgeWeight))   (0 without edges)
//	redundancyNorm = averagePathRedundancy / PathCap
//	penalty        = min(MaxPenalty, CriticalPenalty*critical + ImpactPenalty*sum(impact)/100)
//	score          = clamp(connectedPairFraction*(CutWeight*cutNorm + RedundancyWeight*redundancyNorm) - penalty, 0, 1)
//
// Fleets with fewer than two nodes score 1.
const (
	CutWeight        = 0.4
	RedundancyWeight = 0.6
	CriticalPenalty  = 0.10
	ImpactPenalty    = 0.10
	MaxPenalty       = 0.5
)

// Breakdown holds the normalized inputs of a score.
type Breakdown struct {
	CutNorm        float64
	RedundancyNorm float64
	Connected      float64
	Penalty        float64
}

// Blend applies the score formula.
func (c Breakdown) Blend() float64 {
	raw := c.Connected*(CutWeight*c.CutNorm+RedundancyWeight*c.RedundancyNorm) - c.Penalty
	return math.Max(0, math.Min(1, raw))
}

// Score combines a min-cut result and SPOF list over g into a Result.
// Path redundancy is computed here. Duration is left zero.
func Score(ctx context.Context, g *fleetgraph.Graph, minCut *algorithms.MinCutResult, spofs []algorithms.SPOF, cfg Config) (*Result, error) {
	cfg = cfg.normalized()

	ctx, span := tracer.Start(ctx, "resilience.Score",
		trace.WithAttributes(attribute.Int("spof_count", len(spofs))))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		MinCutPartition:      [2][]string{{}, {}},
		SPOFs:                slices.Clone(spofs),
		CriticalSPOFs:        make([]algorithms.SPOF, 0),
		VulnerablePartitions: make([][]string, 0),
		Recommendations:      make([]string, 0),
		ThresholdViolations:  make([]string, 0),
		NodeCount:            g.NodeCount(),
		EdgeCount:            g.EdgeCount(),
		ConnectionTypes:      slices.Clone(g.Kinds()),
	}
	if result.SPOFs == nil {
		result.SPOFs = make([]algorithms.SPOF, 0)
	}
	if minCut != nil {
		result.MinCut = minCut.Value
		result.MinCutPartition = minCut.Partition
	}

	if g.NodeCount() < 2 {
		result.Score = 1
		result.Grade = GradeA
		result.ConnectedPairFraction = 1
		applyThresholds(result, cfg)
		return result, nil
	}

	redundancy, err := algorithms.PathRedundancy(ctx, g, algorithms.RedundancyOptions{
		PathCap:  cfg.PathCap,
		MaxPairs: cfg.MaxRedundancyPairs,
		Workers:  cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	result.AveragePathRedundancy = redundancy.Average
	result.ConnectedPairFraction = redundancy.ConnectedPairFraction

	var impactSum float64
	for _, s := range spofs {
		impactSum += s.ImpactPercentage
		if s.Severity == algorithms.SeverityCritical {
			result.CriticalSPOFs = append(result.CriticalSPOFs, s)
		}
	}

	parts := Breakdown{
		RedundancyNorm: redundancy.Average / float64(cfg.PathCap),
		Connected:      redundancy.ConnectedPairFraction,
		Penalty: math.Min(MaxPenalty,
			CriticalPenalty*float64(len(result.CriticalSPOFs))+ImpactPenalty*impactSum/100),
	}
	if mean := g.MeanEdgeWeight(); mean > 0 {
		parts.CutNorm = math.Min(1, result.MinCut/(float64(cfg.PathCap)*mean))
	}
	result.Score = parts.Blend()
	result.Grade = GradeForScore(result.Score)

	components := algorithms.Components(g, -1)
	result.VulnerablePartitions = vulnerablePartitions(g, components, result.CriticalSPOFs)
	result.Recommendations = recommendations(result, len(components), cfg)
	applyThresholds(result, cfg)

	span.SetAttributes(
		attribute.Float64("score", result.Score),
		attribute.String("grade", result.Grade.String()),
	)
	return result, nil
}

func vulnerablePartitions(g *fleetgraph.Graph, components [][]int, critical []algorithms.SPOF) [][]string {
	seen := make(map[string]bool)
	out := make([][]string, 0)
	add := func(p []string) {
		key := strings.Join(p, "\x00")
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}

	if len(components) > 1 {
		for _, c := range components {
			ids := make([]string, len(c))
			for i, idx := range c {
				ids[i] = g.ID(idx)
			}
			add(ids)
		}
	}
	for _, s := range critical {
		for _, p := range s.Partitions {
			add(slices.Clone(p))
		}
	}
	return out
}

func recommendations(r *Result, components int, cfg Config) []string {
	recs := make([]string, 0)
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			recs = append(recs, s)
		}
	}

	if components > 1 {
		add(fmt.Sprintf("fleet is split into %d partitions; connect them before relying on failover", components))
	}
	for _, s := range r.SPOFs {
		if s.Severity < algorithms.SeverityHigh {
			continue
		}
		for _, rec := range s.Recommendations {
			add(rec)
		}
	}
	if r.EdgeCount > 0 && r.AveragePathRedundancy < float64(cfg.PathCap)/2 {
		add(fmt.Sprintf("average path redundancy %.2f is low; add %s links between weakly connected agents",
			r.AveragePathRedundancy, cfg.SuggestionKind))
	}
	return recs
}

func applyThresholds(r *Result, cfg Config) {
	r.ThresholdViolations = r.ThresholdViolations[:0]
	if r.Score < cfg.MinResilienceScore {
		r.ThresholdViolations = append(r.ThresholdViolations,
			fmt.Sprintf("score %.3f is below minimum %.3f", r.Score, cfg.MinResilienceScore))
	}
	if len(r.CriticalSPOFs) > cfg.MaxCriticalSpofs {
		r.ThresholdViolations = append(r.ThresholdViolations,
			fmt.Sprintf("%d critical SPOFs exceed maximum %d", len(r.CriticalSPOFs), cfg.MaxCriticalSpofs))
	}
	r.MeetsThresholds = len(r.ThresholdViolations) == 0
}
