package health

import (
	"encoding/json"
	"net/http"
)

// StatusCode maps a probe outcome to an HTTP status. The /health probe
// answers 503 only when unhealthy; readiness and liveness answer 200 only
// when healthy.
func StatusCode(probe Probe, status Status) int {
	if status == StatusHealthy {
		return http.StatusOK
	}
	if probe == ProbeHealth && status == StatusDegraded {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// Handler serves probe as JSON.
func (hc *HealthChecker) Handler(probe Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := hc.Run(probe)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(StatusCode(probe, response.Status))
		_ = json.NewEncoder(w).Encode(response)
	}
}

// HTTPHandler serves the /health probe.
func (hc *HealthChecker) HTTPHandler() http.HandlerFunc { return hc.Handler(ProbeHealth) }

// ReadinessHandler serves the readiness probe.
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc { return hc.Handler(ProbeReadiness) }

// LivenessHandler serves the liveness probe.
func (hc *HealthChecker) LivenessHandler() http.HandlerFunc { return hc.Handler(ProbeLiveness) }
