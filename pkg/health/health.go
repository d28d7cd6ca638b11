// Package health aggregates named checks into health, readiness and
// liveness responses for the HTTP server.
package health

import (
	"fmt"
	"time"
)

// NewHealthChecker creates a checker with no checks registered.
func NewHealthChecker(opts ...Option) *HealthChecker {
	hc := &HealthChecker{
		probes: map[Probe]map[string]CheckFunc{
			ProbeHealth:    {},
			ProbeReadiness: {},
			ProbeLiveness:  {},
		},
		timeout: DefaultCheckTimeout,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(hc)
	}
	return hc
}

// Register adds or replaces the check called name on probe.
func (hc *HealthChecker) Register(probe Probe, name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	checks, ok := hc.probes[probe]
	if !ok {
		checks = make(map[string]CheckFunc)
		hc.probes[probe] = checks
	}
	checks[name] = check
}

// RegisterCheck adds a check to the /health probe.
func (hc *HealthChecker) RegisterCheck(name string, check CheckFunc) {
	hc.Register(ProbeHealth, name, check)
}

// RegisterReadinessCheck adds a check to the readiness probe.
func (hc *HealthChecker) RegisterReadinessCheck(name string, check CheckFunc) {
	hc.Register(ProbeReadiness, name, check)
}

// RegisterLivenessCheck adds a check to the liveness probe.
func (hc *HealthChecker) RegisterLivenessCheck(name string, check CheckFunc) {
	hc.Register(ProbeLiveness, name, check)
}

// Check runs the /health probe.
func (hc *HealthChecker) Check() Response { return hc.Run(ProbeHealth) }

// CheckReadiness runs the readiness probe.
func (hc *HealthChecker) CheckReadiness() Response { return hc.Run(ProbeReadiness) }

// CheckLiveness runs the liveness probe.
func (hc *HealthChecker) CheckLiveness() Response { return hc.Run(ProbeLiveness) }

type namedResult struct {
	name  string
	check Check
}

// Run executes every check of probe concurrently. The overall status is the
// worst check status; a probe with no checks is healthy. Checks still
// running when the timeout expires are reported unhealthy.
func (hc *HealthChecker) Run(probe Probe) Response {
	hc.mu.RLock()
	checks := make(map[string]CheckFunc, len(hc.probes[probe]))
	for name, fn := range hc.probes[probe] {
		checks[name] = fn
	}
	timeout := hc.timeout
	hc.mu.RUnlock()

	now := time.Now()
	response := Response{
		Probe:         probe,
		Status:        StatusHealthy,
		Timestamp:     now,
		Checks:        make(map[string]Check, len(checks)),
		UptimeSeconds: now.Sub(hc.started).Round(time.Second).Seconds(),
	}

	results := make(chan namedResult, len(checks))
	for name, fn := range checks {
		go func() {
			start := time.Now()
			check := fn()
			check.LastChecked = start
			check.DurationMs = float64(time.Since(start).Microseconds()) / 1000
			if check.Name == "" {
				check.Name = name
			}
			results <- namedResult{name: name, check: check}
		}()
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for len(response.Checks) < len(checks) {
		select {
		case r := <-results:
			response.Checks[r.name] = r.check
			response.Status = response.Status.Worse(r.check.Status)
		case <-deadline.C:
			for name := range checks {
				if _, done := response.Checks[name]; done {
					continue
				}
				response.Checks[name] = Check{
					Name:        name,
					Status:      StatusUnhealthy,
					Message:     fmt.Sprintf("Check timed out after %s", timeout),
					LastChecked: now,
					DurationMs:  float64(timeout.Milliseconds()),
				}
			}
			response.Status = StatusUnhealthy
		}
	}
	return response
}
