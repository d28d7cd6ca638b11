// Package monitor re-runs resilience analyses on a schedule and on topology
// changes, keeps the last good result and reports state transitions to
// subscribers.
//
// A monitor is either stopped or running. While running it executes one
// cycle at a time: fetch the current snapshot, analyze it, suggest
// optimizations, then compare the result with the previous good one.
// Triggers that arrive during a cycle are folded into a single follow-up
// cycle.
//
// Events are delivered on the monitor goroutine, one handler at a time. A
// run that has been stopped delivers nothing further, and a restarted run
// waits for the previous one to exit before its first cycle.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/logging"
	"github.com/dd0wney/cluso-fleetguard/pkg/metrics"
	"github.com/dd0wney/cluso-fleetguard/pkg/resilience"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
)

// State is the monitor lifecycle state.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is the outcome of the last successful cycle.
type Snapshot struct {
	Result        *resilience.Result        `json:"result"`
	Optimizations []resilience.Optimization `json:"optimizations"`
	Cycle         uint64                    `json:"cycle"`
	CompletedAt   time.Time                 `json:"completedAt"`
}

// Status summarizes the monitor for status endpoints and health checks.
type Status struct {
	State           State      `json:"state"`
	Cycles          uint64     `json:"cycles"`
	LastCycle       uint64     `json:"lastCycle,omitempty"`
	LastCompletedAt *time.Time `json:"lastCompletedAt,omitempty"`
	MeetsThresholds *bool      `json:"meetsThresholds,omitempty"`
	Subscribers     int        `json:"subscribers"`
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor's logger. The default discards output.
func WithLogger(logger logging.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records cycle and event metrics into the registry.
func WithMetrics(registry *metrics.Registry) Option {
	return func(m *Monitor) {
		m.metrics = registry
	}
}

// Monitor runs analyses in the background. It is safe for concurrent use.
type Monitor struct {
	analyzer *resilience.Analyzer
	logger   logging.Logger
	metrics  *metrics.Registry

	mu         sync.Mutex // guards lifecycle fields below
	state      State
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	active     *run

	trigger chan struct{}
	cycles  atomic.Uint64
	last    atomic.Pointer[Snapshot]

	handlersMu sync.RWMutex
	handlers   []subscriber
	nextID     uint64
}

type subscriber struct {
	id uint64
	fn Handler
}

// New creates a stopped monitor. Start replaces the analyzer's
// configuration with the one it is given but keeps its logger and metrics.
func New(analyzer *resilience.Analyzer, opts ...Option) *Monitor {
	if analyzer == nil {
		// The defaults always validate.
		analyzer, _ = resilience.NewAnalyzer(resilience.DefaultConfig())
	}
	m := &Monitor{
		analyzer: analyzer,
		logger:   logging.NewNopLogger(),
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logging.Component("monitor"))
	return m
}

// Start begins monitoring the topologies returned by provider. The first
// cycle runs immediately.
func (m *Monitor) Start(provider topology.Provider, cfg Config) error {
	if provider == nil {
		return ErrNilProvider
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	analyzer, err := m.analyzer.WithConfig(cfg.Config)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRunning {
		return ErrAlreadyRunning
	}

	// A Notify issued while stopped must not cause an extra cycle.
	select {
	case <-m.trigger:
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	prev := m.done
	m.generation++
	m.state = StateRunning
	m.cancel = cancel
	m.done = make(chan struct{})

	r := &run{
		m:          m,
		generation: m.generation,
		provider:   provider,
		analyzer:   analyzer,
		cfg:        analyzer.Config(),
		interval:   cfg.interval(),
		tracker:    newTracker(analyzer.Config()),
	}
	m.active = r
	done := m.done
	go func() {
		defer close(done)
		// The previous run may still be inside a handler.
		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
				return
			}
		}
		r.loop(ctx)
	}()

	if m.metrics != nil {
		m.metrics.SetMonitorRunning(true)
	}
	m.logger.Info("monitor started",
		logging.Duration("interval", r.interval),
		logging.Duration("timeout", r.cfg.Timeout),
		logging.Float64("min_resilience_score", r.cfg.MinResilienceScore),
		logging.Int("max_critical_spofs", r.cfg.MaxCriticalSpofs),
	)
	return nil
}

// Stop cancels the running cycle, if any, and guarantees that no further
// cycle starts and no further event is delivered. It waits for the monitor
// goroutine to exit unless a handler is running, since the handler may be
// the caller; the handler in flight then finishes on its own. Stop on a
// stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	m.state = StateStopped
	m.generation++
	cancel, done, r := m.cancel, m.done, m.active
	m.active = nil
	m.mu.Unlock()

	cancel()
	if !r.dispatching.Load() {
		<-done
	}

	if m.metrics != nil {
		m.metrics.SetMonitorRunning(false)
	}
	m.logger.Info("monitor stopped", logging.Cycle(m.cycles.Load()))
}

// Notify requests a cycle. Requests made while one is already pending are
// coalesced.
func (m *Monitor) Notify() {
	select {
	case m.trigger <- struct{}{}:
	default:
		m.coalesced()
	}
}

// State returns the lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastSnapshot returns the last successful cycle, or nil before the first.
func (m *Monitor) LastSnapshot() *Snapshot {
	return m.last.Load()
}

// LastResult returns the last good result, or nil if there is none.
func (m *Monitor) LastResult() *resilience.Result {
	if s := m.last.Load(); s != nil {
		return s.Result
	}
	return nil
}

// Status reports the lifecycle state and last cycle.
func (m *Monitor) Status() Status {
	st := Status{
		State:  m.State(),
		Cycles: m.cycles.Load(),
	}
	if s := m.last.Load(); s != nil {
		completed := s.CompletedAt
		meets := s.Result.MeetsThresholds
		st.LastCycle = s.Cycle
		st.LastCompletedAt = &completed
		st.MeetsThresholds = &meets
	}
	m.handlersMu.RLock()
	st.Subscribers = len(m.handlers)
	m.handlersMu.RUnlock()
	return st
}

// Subscribe registers h for every subsequent event. The returned function
// removes it and may be called more than once.
func (m *Monitor) Subscribe(h Handler) func() {
	m.handlersMu.Lock()
	m.nextID++
	id := m.nextID
	m.handlers = append(m.handlers, subscriber{id: id, fn: h})
	m.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.handlersMu.Lock()
			defer m.handlersMu.Unlock()
			m.handlers = slices.DeleteFunc(m.handlers, func(s subscriber) bool { return s.id == id })
		})
	}
}

// commit publishes snap if the run that produced it is still current.
func (m *Monitor) commit(generation uint64, snap *Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != generation {
		return false
	}
	m.last.Store(snap)
	return true
}

func (m *Monitor) current(generation uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation == generation
}

func (m *Monitor) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event handler panicked",
				logging.String("type", string(e.Type)),
				logging.Any("panic", r),
			)
		}
	}()
	h(e)
}

func (m *Monitor) coalesced() {
	if m.metrics != nil {
		m.metrics.MonitorCoalescedTotal.Inc()
	}
}

// run is the state of one Start..Stop span. Only its goroutine touches it,
// apart from dispatching, which Stop reads.
type run struct {
	m           *Monitor
	generation  uint64
	provider    topology.Provider
	analyzer    *resilience.Analyzer
	cfg         resilience.Config
	interval    time.Duration
	tracker     *tracker
	dispatching atomic.Bool
}

func (r *run) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var changes <-chan struct{}
	if w, ok := r.provider.(topology.Watcher); ok {
		changes = w.Changes()
	}

	r.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.m.trigger:
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
		}
		changes = r.drain(ticker.C, changes)
		if ctx.Err() != nil {
			return
		}
		r.cycle(ctx)
	}
}

// drain folds every other pending trigger into the cycle about to run.
func (r *run) drain(tick <-chan time.Time, changes <-chan struct{}) <-chan struct{} {
	for {
		select {
		case <-tick:
		case <-r.m.trigger:
		case _, ok := <-changes:
			if !ok {
				return nil
			}
		default:
			return changes
		}
		r.m.coalesced()
	}
}

func (r *run) cycle(ctx context.Context) {
	n := r.m.cycles.Add(1)
	logger := r.m.logger.With(logging.Cycle(n))

	cycleCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := r.analyze(cycleCtx, n)
	completed := time.Now()

	if ctx.Err() != nil || !r.m.current(r.generation) {
		logger.Debug("monitor cycle abandoned")
		return
	}

	if err != nil {
		var e Event
		outcome := metrics.OutcomeError
		switch {
		case errors.Is(err, resilience.ErrAnalysisTimeout), errors.Is(err, context.DeadlineExceeded):
			outcome = metrics.OutcomeTimeout
			e = newEvent(EventAnalysisTimeout, n, completed)
			e.ElapsedMs = completed.Sub(start).Milliseconds()
		default:
			if errors.Is(err, topology.ErrInvalidTopology) {
				outcome = metrics.OutcomeInvalid
			}
			e = newEvent(EventAnalysisError, n, completed)
			e.Cause = err.Error()
		}
		if r.m.metrics != nil {
			r.m.metrics.RecordMonitorCycle(outcome, completed)
		}
		logger.Warn("monitor cycle failed",
			logging.String("outcome", outcome),
			logging.Latency(completed.Sub(start)),
			logging.Error(err),
		)
		r.dispatch([]Event{e})
		return
	}

	snap.CompletedAt = completed
	if !r.m.commit(r.generation, snap) {
		return
	}
	events := r.tracker.observe(snap.Result, n, completed)
	if r.m.metrics != nil {
		r.m.metrics.RecordMonitorCycle(metrics.OutcomeOK, completed)
	}
	logger.Info("monitor cycle complete",
		logging.TopologyID(snap.Result.TopologyID),
		logging.Score(snap.Result.Score),
		logging.Grade(snap.Result.Grade.String()),
		logging.Count(len(events)),
		logging.Latency(completed.Sub(start)),
	)
	r.dispatch(events)
}

// dispatch delivers events in order to the handlers registered when it
// starts, until the run is stopped.
func (r *run) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	m := r.m
	m.handlersMu.RLock()
	handlers := slices.Clone(m.handlers)
	m.handlersMu.RUnlock()

	r.dispatching.Store(true)
	defer r.dispatching.Store(false)

	for _, e := range events {
		if !m.current(r.generation) {
			return
		}
		if m.metrics != nil {
			m.metrics.RecordMonitorEvent(string(e.Type))
		}
		m.logger.Info("monitor event",
			logging.String("type", string(e.Type)),
			logging.String("event_id", e.ID),
			logging.Cycle(e.Cycle),
			logging.NodeID(e.Node),
		)
		for _, s := range handlers {
			if !m.current(r.generation) {
				return
			}
			m.deliver(s.fn, e)
		}
	}
}

// analyze runs one cycle's pipeline. Panics anywhere in it, including in
// the provider, become ErrAnalysisFault errors.
func (r *run) analyze(ctx context.Context, cycle uint64) (snap *Snapshot, err error) {
	defer func() {
		if p := recover(); p != nil {
			snap, err = nil, fmt.Errorf("%w: %v", resilience.ErrAnalysisFault, p)
		}
	}()

	t, err := r.provider.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch topology: %w", err)
	}
	result, err := r.analyzer.Analyze(ctx, t)
	if err != nil {
		return nil, err
	}
	opts, err := r.analyzer.SuggestOptimizations(ctx, result, t)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Result: result, Optimizations: opts, Cycle: cycle}, nil
}
