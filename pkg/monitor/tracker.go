package monitor

import (
	"slices"
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/resilience"
)

// tracker holds the alert state of the last good result so that each
// transition produces exactly one event. Failed cycles never touch it.
type tracker struct {
	minScore    float64
	maxCritical int

	critical map[string]bool
	degraded bool
	exceeded bool
}

func newTracker(cfg resilience.Config) *tracker {
	return &tracker{
		minScore:    cfg.MinResilienceScore,
		maxCritical: cfg.MaxCriticalSpofs,
		critical:    make(map[string]bool),
	}
}

// observe advances the state to r and returns the transitions in a fixed
// order: new critical SPOFs, resolved SPOFs, score threshold, critical count.
func (t *tracker) observe(r *resilience.Result, cycle uint64, at time.Time) []Event {
	var events []Event

	current := make(map[string]bool, len(r.CriticalSPOFs))
	for _, id := range r.CriticalIDs() {
		current[id] = true
		if !t.critical[id] {
			e := newEvent(EventSPOFCriticalDetected, cycle, at)
			e.Node = id
			e.Result = r
			events = append(events, e)
		}
	}

	var resolved []string
	for id := range t.critical {
		if !current[id] {
			resolved = append(resolved, id)
		}
	}
	slices.Sort(resolved)
	for _, id := range resolved {
		e := newEvent(EventSPOFResolved, cycle, at)
		e.Node = id
		events = append(events, e)
	}

	below := r.Score < t.minScore
	switch {
	case below && !t.degraded:
		e := newEvent(EventResilienceDegraded, cycle, at)
		e.Score = r.Score
		e.Threshold = t.minScore
		events = append(events, e)
	case !below && t.degraded:
		e := newEvent(EventResilienceRecovered, cycle, at)
		e.Score = r.Score
		events = append(events, e)
	}

	over := len(current) > t.maxCritical
	if over && !t.exceeded {
		e := newEvent(EventCriticalSpofsExceeded, cycle, at)
		e.Count = len(current)
		e.Max = t.maxCritical
		events = append(events, e)
	}

	t.critical = current
	t.degraded = below
	t.exceeded = over
	return events
}
