package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	HTTPResponseSizeBytes *prometheus.HistogramVec
	WebsocketClients      prometheus.Gauge

	// Analysis Metrics
	AnalysesTotal       *prometheus.CounterVec
	AnalysisDuration    prometheus.Histogram
	PhaseDuration       *prometheus.HistogramVec
	ResilienceScore     prometheus.Gauge
	MinCutValue         prometheus.Gauge
	PathRedundancy      prometheus.Gauge
	SPOFsBySeverity     *prometheus.GaugeVec
	FleetNodes          prometheus.Gauge
	FleetEdges          prometheus.Gauge
	SuggestionsTotal    *prometheus.CounterVec
	SuggestionsDuration prometheus.Histogram

	// Monitor Metrics
	MonitorRunning          prometheus.Gauge
	MonitorCyclesTotal      *prometheus.CounterVec
	MonitorCoalescedTotal   prometheus.Counter
	MonitorEventsTotal      *prometheus.CounterVec
	MonitorLastCycleSeconds prometheus.Gauge

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
	started  time.Time
	mu       sync.RWMutex
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		started:  time.Now(),
	}

	// Initialize all metrics
	r.initHTTPMetrics()
	r.initAnalysisMetrics()
	r.initMonitorMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
// System gauges are refreshed on every scrape.
func (r *Registry) Handler() http.Handler {
	inner := promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.UpdateSystemMetrics()
		inner.ServeHTTP(w, req)
	})
}
