package health

import (
	"sync"
	"time"
)

// Status is the outcome of a single check or of a whole probe.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worse returns whichever of s and other is further from healthy. Unknown
// statuses count as unhealthy.
func (s Status) Worse(other Status) Status {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// Probe selects which set of checks a request runs.
type Probe string

const (
	ProbeHealth    Probe = "health"
	ProbeReadiness Probe = "readiness"
	ProbeLiveness  Probe = "liveness"
)

// DefaultCheckTimeout bounds each probe when no WithCheckTimeout is given.
const DefaultCheckTimeout = 2 * time.Second

// Check is the result of one named check.
type Check struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	DurationMs  float64        `json:"duration_ms"`
}

// CheckFunc produces one check result. It may block; the checker reports it
// unhealthy once the probe timeout passes.
type CheckFunc func() Check

// HealthChecker runs registered checks per probe.
type HealthChecker struct {
	mu      sync.RWMutex
	probes  map[Probe]map[string]CheckFunc
	timeout time.Duration
	started time.Time
}

// Option configures a HealthChecker.
type Option func(*HealthChecker)

// WithCheckTimeout bounds how long a probe waits for its checks.
func WithCheckTimeout(d time.Duration) Option {
	return func(hc *HealthChecker) {
		if d > 0 {
			hc.timeout = d
		}
	}
}

// Response is the body of every health endpoint.
type Response struct {
	Probe         Probe            `json:"probe"`
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks"`
	UptimeSeconds float64          `json:"uptime_seconds"`
}
