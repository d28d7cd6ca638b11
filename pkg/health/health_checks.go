package health

import (
	"fmt"
	"time"
)

// SimpleCheck creates a simple health check that always returns healthy
func SimpleCheck(name string) Check {
	return Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
	}
}

// MonitorState is what the monitor checks read from the running monitor.
type MonitorState struct {
	Running         bool
	HasResult       bool
	MeetsThresholds bool
	Score           float64
	Grade           string
	CriticalSPOFs   int
	LastCompleted   time.Time
}

// MonitorCheck reports the fleet as seen by the monitor: unhealthy when the
// monitor is stopped, degraded when the last result fails its thresholds or
// is older than staleAfter (zero disables staleness).
func MonitorCheck(getState func() MonitorState, staleAfter time.Duration) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "monitor",
			Details: make(map[string]any),
		}

		state := getState()
		check.Details["running"] = state.Running

		if state.HasResult {
			check.Details["score"] = state.Score
			check.Details["grade"] = state.Grade
			check.Details["critical_spofs"] = state.CriticalSPOFs
			check.Details["last_completed"] = state.LastCompleted
		}

		age := time.Since(state.LastCompleted)
		switch {
		case !state.Running:
			check.Status = StatusUnhealthy
			check.Message = "Monitor stopped"
		case !state.HasResult:
			check.Status = StatusHealthy
			check.Message = "Awaiting first cycle"
		case !state.MeetsThresholds:
			check.Status = StatusDegraded
			check.Message = "Resilience below thresholds"
		case staleAfter > 0 && age > staleAfter:
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("Last result is %s old", age.Round(time.Second))
		default:
			check.Status = StatusHealthy
			check.Message = "Resilience within thresholds"
		}

		return check
	}
}

// ReadinessCheck is healthy once the monitor is running and has a result.
func ReadinessCheck(getState func() MonitorState) CheckFunc {
	return func() Check {
		check := Check{
			Name: "monitor_ready",
		}

		state := getState()
		switch {
		case !state.Running:
			check.Status = StatusUnhealthy
			check.Message = "Monitor stopped"
		case !state.HasResult:
			check.Status = StatusDegraded
			check.Message = "No analysis result yet"
		default:
			check.Status = StatusHealthy
			check.Message = "Ready"
		}

		return check
	}
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		usagePercent := 0.0
		if sys > 0 {
			usagePercent = float64(alloc) / float64(sys) * 100
		}

		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}
