package metrics

import (
	"runtime"
	"time"
)

// Analysis outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordResponseSize records the size of an HTTP response body
func (r *Registry) RecordResponseSize(method, path string, size float64) {
	r.HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(size)
}

// IncHTTPRequestsInFlight marks the start of an HTTP request
func (r *Registry) IncHTTPRequestsInFlight() {
	r.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight marks the end of an HTTP request
func (r *Registry) DecHTTPRequestsInFlight() {
	r.HTTPRequestsInFlight.Dec()
}

// RecordAnalysis records one finished analysis
func (r *Registry) RecordAnalysis(outcome string, duration time.Duration) {
	r.AnalysesTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		r.AnalysisDuration.Observe(duration.Seconds())
	}
}

// RecordPhase records the time spent in one analysis phase
func (r *Registry) RecordPhase(phase string, duration time.Duration) {
	r.PhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// UpdateResilience publishes the gauges of a finished analysis.
// spofsBySeverity is keyed by severity name.
func (r *Registry) UpdateResilience(score, minCut, redundancy float64, nodes, edges int, spofsBySeverity map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ResilienceScore.Set(score)
	r.MinCutValue.Set(minCut)
	r.PathRedundancy.Set(redundancy)
	r.FleetNodes.Set(float64(nodes))
	r.FleetEdges.Set(float64(edges))

	// Reset so severities that disappeared drop to zero
	r.SPOFsBySeverity.Reset()
	for _, severity := range []string{"low", "medium", "high", "critical"} {
		r.SPOFsBySeverity.WithLabelValues(severity).Set(float64(spofsBySeverity[severity]))
	}
}

// RecordSuggestions records the suggestion types produced by one run
func (r *Registry) RecordSuggestions(types []string, duration time.Duration) {
	for _, t := range types {
		r.SuggestionsTotal.WithLabelValues(t).Inc()
	}
	r.SuggestionsDuration.Observe(duration.Seconds())
}

// SetMonitorRunning sets the monitor state gauge
func (r *Registry) SetMonitorRunning(running bool) {
	if running {
		r.MonitorRunning.Set(1)
	} else {
		r.MonitorRunning.Set(0)
	}
}

// RecordMonitorCycle records one monitor cycle
func (r *Registry) RecordMonitorCycle(outcome string, completed time.Time) {
	r.MonitorCyclesTotal.WithLabelValues(outcome).Inc()
	r.MonitorLastCycleSeconds.Set(float64(completed.UnixNano()) / 1e9)
}

// RecordMonitorEvent records one emitted monitor event
func (r *Registry) RecordMonitorEvent(eventType string) {
	r.MonitorEventsTotal.WithLabelValues(eventType).Inc()
}

// UpdateSystemMetrics refreshes uptime, goroutine and memory gauges
func (r *Registry) UpdateSystemMetrics() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	r.UptimeSeconds.Set(time.Since(r.started).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(mem.Alloc))
	r.MemorySysBytes.Set(float64(mem.Sys))
}
