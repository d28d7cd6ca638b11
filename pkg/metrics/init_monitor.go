package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initMonitorMetrics() {
	r.MonitorRunning = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetguard_monitor_running",
			Help: "Whether the SPOF monitor loop is running (1 = running)",
		},
	)

	r.MonitorCyclesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetguard_monitor_cycles_total",
			Help: "Monitor cycles by outcome",
		},
		[]string{"outcome"},
	)

	r.MonitorCoalescedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "fleetguard_monitor_coalesced_triggers_total",
			Help: "Triggers folded into an already pending cycle",
		},
	)

	r.MonitorEventsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetguard_monitor_events_total",
			Help: "Monitor events emitted by type",
		},
		[]string{"type"},
	)

	r.MonitorLastCycleSeconds = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetguard_monitor_last_cycle_timestamp_seconds",
			Help: "Unix time of the last completed monitor cycle",
		},
	)
}
