package monitor

import (
	"encoding/json"
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/resilience"
	"github.com/google/uuid"
)

// EventType names a monitor event.
type EventType string

const (
	EventSPOFCriticalDetected  EventType = "spof-critical-detected"
	EventSPOFResolved          EventType = "spof-resolved"
	EventResilienceDegraded    EventType = "resilience-degraded"
	EventResilienceRecovered   EventType = "resilience-recovered"
	EventCriticalSpofsExceeded EventType = "critical-spofs-exceeded"
	EventAnalysisTimeout       EventType = "analysis-timeout"
	EventAnalysisError         EventType = "analysis-error"
)

// EventTypes returns every event type.
func EventTypes() []EventType {
	return []EventType{
		EventSPOFCriticalDetected, EventSPOFResolved,
		EventResilienceDegraded, EventResilienceRecovered,
		EventCriticalSpofsExceeded, EventAnalysisTimeout, EventAnalysisError,
	}
}

// Event is one notification from a monitor cycle. Only the payload fields
// of its Type are set:
//
//	spof-critical-detected   Node, Result
//	spof-resolved            Node
//	resilience-degraded      Score, Threshold
//	resilience-recovered     Score
//	critical-spofs-exceeded  Count, Max
//	analysis-timeout         ElapsedMs
//	analysis-error           Cause
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Cycle     uint64    `json:"cycle"`
	Timestamp time.Time `json:"timestamp"`

	Node      string             `json:"node,omitempty"`
	Result    *resilience.Result `json:"result,omitempty"`
	Score     float64            `json:"score,omitempty"`
	Threshold float64            `json:"threshold,omitempty"`
	Count     int                `json:"count,omitempty"`
	Max       int                `json:"max,omitempty"`
	ElapsedMs int64              `json:"elapsedMs,omitempty"`
	Cause     string             `json:"cause,omitempty"`
}

// MarshalJSON always writes the score fields of the events that carry them,
// so a score or threshold of 0 is not dropped.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	out := struct {
		plain
		Score     *float64 `json:"score,omitempty"`
		Threshold *float64 `json:"threshold,omitempty"`
	}{plain: plain(e)}
	switch e.Type {
	case EventResilienceDegraded:
		out.Score, out.Threshold = &e.Score, &e.Threshold
	case EventResilienceRecovered:
		out.Score = &e.Score
	}
	return json.Marshal(out)
}

// Handler receives monitor events. Handlers run on the monitor goroutine,
// so a slow handler delays the next cycle.
type Handler func(Event)

func newEvent(typ EventType, cycle uint64, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Cycle:     cycle,
		Timestamp: at,
	}
}
