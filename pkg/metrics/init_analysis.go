package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// analysisBuckets span sub-millisecond toy fleets to multi-second large ones.
var analysisBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30}

func (r *Registry) initAnalysisMetrics() {
	r.AnalysesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetguard_analyses_total",
			Help: "Resilience analyses by outcome",
		},
		[]string{"outcome"},
	)

	r.AnalysisDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetguard_analysis_duration_seconds",
			Help:    "Wall-clock time of one full resilience analysis",
			Buckets: analysisBuckets,
		},
	)

	r.PhaseDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetguard_analysis_phase_duration_seconds",
			Help:    "Time spent in each analysis phase",
			Buckets: analysisBuckets,
		},
		[]string{"phase"},
	)

	r.ResilienceScore = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetguard_resilience_score",
			Help: "Resilience score of the last analyzed topology (0-1)",
		},
	)

	r.MinCutValue = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetguard_min_cut",
			Help: "Weighted global minimum cut of the last analyzed topology",
		},
	)

	r.PathRedundancy = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetguard_path_redundancy",
			Help: "Average capped edge-disjoint path count of the last analyzed topology",
		},
	)

	r.SPOFsBySeverity = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetguard_spofs",
			Help: "Single points of failure in the last analyzed topology by severity",
		},
		[]string{"severity"},
	)

	r.FleetNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetguard_fleet_nodes",
			Help: "Nodes in the last analyzed topology",
		},
	)

	r.FleetEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetguard_fleet_edges",
			Help: "Edges of the configured kinds in the last analyzed topology",
		},
	)

	r.SuggestionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetguard_suggestions_total",
			Help: "Optimization suggestions produced by type",
		},
		[]string{"type"},
	)

	r.SuggestionsDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetguard_suggestions_duration_seconds",
			Help:    "Time spent generating and evaluating suggestions",
			Buckets: analysisBuckets,
		},
	)
}
