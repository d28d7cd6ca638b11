// Package resilience scores how failure tolerant a fleet topology is and
// proposes edits that improve it.
//
// An analysis runs four phases over one immutable snapshot: graph build,
// global min-cut and SPOF scan (concurrently), then scoring. Every phase
// honors context cancellation, and an Analyzer bounds the whole run with
// Config.Timeout.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/algorithms"
	"github.com/dd0wney/cluso-fleetguard/pkg/fleetgraph"
	"github.com/dd0wney/cluso-fleetguard/pkg/logging"
	"github.com/dd0wney/cluso-fleetguard/pkg/metrics"
	"github.com/dd0wney/cluso-fleetguard/pkg/parallel"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("fleetguard.resilience")

// Phase names used in logs and metrics.
const (
	PhaseBuild  = "build"
	PhaseMinCut = "min_cut"
	PhaseSPOF   = "spof_scan"
	PhaseScore  = "score"
)

// Analyzer runs resilience analyses with a fixed configuration. It holds
// no per-analysis state and is safe for concurrent use.
type Analyzer struct {
	cfg     Config
	logger  logging.Logger
	metrics *metrics.Registry
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the analyzer's logger. The default discards output.
func WithLogger(logger logging.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records analysis metrics into the registry.
func WithMetrics(registry *metrics.Registry) Option {
	return func(a *Analyzer) {
		a.metrics = registry
	}
}

// NewAnalyzer validates cfg and returns an analyzer using it.
func NewAnalyzer(cfg Config, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{
		cfg:    cfg.normalized(),
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(logging.Component("resilience"))
	return a, nil
}

// Config returns the normalized configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// WithConfig returns an analyzer sharing a's logger and metrics but using cfg.
func (a *Analyzer) WithConfig(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clone := *a
	clone.cfg = cfg.normalized()
	return &clone, nil
}

// Analyze scores a topology snapshot. Invalid snapshots fail with an error
// wrapping topology.ErrInvalidTopology. Deadline expiry wraps
// ErrAnalysisTimeout and internal panics wrap ErrAnalysisFault.
func (a *Analyzer) Analyze(ctx context.Context, t *topology.Topology) (*Result, error) {
	ctx, span := tracer.Start(ctx, "resilience.Analyze",
		trace.WithAttributes(attribute.String("topology_id", topologyID(t))))
	defer span.End()

	start := time.Now()
	result, err := guard(ctx, a.cfg.Timeout, func(ctx context.Context) (*Result, error) {
		return a.pipeline(ctx, t, a.cfg, true)
	})
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.recordOutcome(err, elapsed)
		a.logger.Warn("resilience analysis failed",
			logging.TopologyID(topologyID(t)),
			logging.Latency(elapsed),
			logging.Error(err),
		)
		return nil, err
	}

	result.Duration = elapsed
	a.recordOutcome(nil, elapsed)
	if a.metrics != nil {
		bySeverity := make(map[string]int)
		for _, s := range result.SPOFs {
			bySeverity[s.Severity.String()]++
		}
		a.metrics.UpdateResilience(result.Score, result.MinCut, result.AveragePathRedundancy,
			result.NodeCount, result.EdgeCount, bySeverity)
	}

	a.logger.Info("resilience analysis complete",
		logging.TopologyID(result.TopologyID),
		logging.Score(result.Score),
		logging.Grade(result.Grade.String()),
		logging.Int("spofs", len(result.SPOFs)),
		logging.Int("critical_spofs", len(result.CriticalSPOFs)),
		logging.Bool("meets_thresholds", result.MeetsThresholds),
		logging.Latency(elapsed),
	)
	return result, nil
}

// DetectSPOFs runs only the graph build and SPOF scan.
func (a *Analyzer) DetectSPOFs(ctx context.Context, t *topology.Topology) ([]algorithms.SPOF, error) {
	return guard(ctx, a.cfg.Timeout, func(ctx context.Context) ([]algorithms.SPOF, error) {
		g, err := a.build(ctx, t, a.cfg, true)
		if err != nil {
			return nil, err
		}
		return a.detect(ctx, g, a.cfg, true)
	})
}

// pipeline runs build, min-cut and SPOF scan, and scoring. observe=false
// keeps hypothetical runs out of logs and metrics.
func (a *Analyzer) pipeline(ctx context.Context, t *topology.Topology, cfg Config, observe bool) (*Result, error) {
	g, err := a.build(ctx, t, cfg, observe)
	if err != nil {
		return nil, err
	}

	var (
		minCut *algorithms.MinCutResult
		spofs  []algorithms.SPOF
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(recovered(func() error {
		return a.phase(PhaseMinCut, observe, func() (err error) {
			minCut, err = algorithms.GlobalMinCut(groupCtx, g)
			return err
		})
	}))
	group.Go(recovered(func() error {
		var err error
		spofs, err = a.detect(groupCtx, g, cfg, observe)
		return err
	}))
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var result *Result
	err = a.phase(PhaseScore, observe, func() (err error) {
		result, err = Score(ctx, g, minCut, spofs, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.TopologyID = topologyID(t)
	return result, nil
}

func (a *Analyzer) build(ctx context.Context, t *topology.Topology, cfg Config, observe bool) (*fleetgraph.Graph, error) {
	var g *fleetgraph.Graph
	err := a.phase(PhaseBuild, observe, func() (err error) {
		g, err = fleetgraph.FromTopology(ctx, t, cfg.ConnectionTypes)
		return err
	})
	return g, err
}

func (a *Analyzer) detect(ctx context.Context, g *fleetgraph.Graph, cfg Config, observe bool) ([]algorithms.SPOF, error) {
	var spofs []algorithms.SPOF
	err := a.phase(PhaseSPOF, observe, func() (err error) {
		spofs, err = algorithms.DetectSPOFs(ctx, g, algorithms.SPOFOptions{
			Workers:             cfg.Workers,
			StopAtFirstCritical: !cfg.AnalyzeAllSpofs,
			RecommendKind:       cfg.SuggestionKind,
		})
		return err
	})
	return spofs, err
}

func (a *Analyzer) phase(name string, observe bool, fn func() error) error {
	if !observe {
		return fn()
	}
	timer := logging.StartTimer(a.logger, "analysis phase", logging.Phase(name))
	err := fn()
	var elapsed time.Duration
	if err != nil {
		elapsed = timer.EndError(err)
	} else {
		elapsed = timer.End()
	}
	if a.metrics != nil {
		a.metrics.RecordPhase(name, elapsed)
	}
	return err
}

func (a *Analyzer) recordOutcome(err error, elapsed time.Duration) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordAnalysis(outcomeOf(err), elapsed)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrAnalysisTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, topology.ErrInvalidTopology):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

// guard bounds fn by timeout and converts deadline expiry and panics into
// ErrAnalysisTimeout and ErrAnalysisFault.
func guard[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (out T, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out, err = zero, fmt.Errorf("%w: %v", ErrAnalysisFault, r)
		}
	}()

	out, err = fn(ctx)
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, context.DeadlineExceeded):
		return out, fmt.Errorf("%w after %v: %w", ErrAnalysisTimeout, time.Since(start).Round(time.Millisecond), err)
	case errors.Is(err, parallel.ErrTaskPanic):
		return out, fmt.Errorf("%w: %w", ErrAnalysisFault, err)
	}
	return out, err
}

// recovered converts a panic in fn into an ErrAnalysisFault error so that
// goroutines started by an analysis cannot crash the process.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrAnalysisFault, r)
			}
		}()
		return fn()
	}
}

func topologyID(t *topology.Topology) string {
	if t == nil {
		return ""
	}
	return t.ID
}

// Analyze scores t with cfg.
func Analyze(ctx context.Context, t *topology.Topology, cfg Config) (*Result, error) {
	a, err := NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, t)
}

// DetectSPOFs lists the SPOFs of t under cfg.
func DetectSPOFs(ctx context.Context, t *topology.Topology, cfg Config) ([]algorithms.SPOF, error) {
	a, err := NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	return a.DetectSPOFs(ctx, t)
}

// SuggestOptimizations proposes edits for t using the default configuration
// restricted to the connection kinds result was computed with.
func SuggestOptimizations(ctx context.Context, result *Result, t *topology.Topology) ([]Optimization, error) {
	cfg := DefaultConfig()
	if result != nil && len(result.ConnectionTypes) > 0 {
		cfg.ConnectionTypes = result.ConnectionTypes
	}
	a, err := NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	return a.SuggestOptimizations(ctx, result, t)
}
