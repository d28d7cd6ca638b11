// Package api serves resilience analyses, monitor state and monitor events
// over HTTP.
//
// Routes:
//
//	POST /v1/analyze         analyze a topology
//	POST /v1/spofs           list its single points of failure
//	POST /v1/optimizations   suggest edits for it
//	GET  /v1/monitor/last    last monitor snapshot
//	GET  /v1/monitor/status  monitor lifecycle state
//	GET  /v1/events          websocket stream of monitor events
//	GET  /health, /health/ready, /health/live, /metrics
package api

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dd0wney/cluso-fleetguard/pkg/api/middleware"
	"github.com/dd0wney/cluso-fleetguard/pkg/config"
	"github.com/dd0wney/cluso-fleetguard/pkg/health"
	"github.com/dd0wney/cluso-fleetguard/pkg/logging"
	"github.com/dd0wney/cluso-fleetguard/pkg/metrics"
	"github.com/dd0wney/cluso-fleetguard/pkg/monitor"
	"github.com/dd0wney/cluso-fleetguard/pkg/pubsub"
	"github.com/dd0wney/cluso-fleetguard/pkg/resilience"
)

// TopicEvents is the broker topic monitor events are published on.
const TopicEvents = "monitor.events"

// Server is the fleetguard HTTP API.
type Server struct {
	analyzer   *resilience.Analyzer
	monitor    *monitor.Monitor
	broker     *pubsub.PubSub[monitor.Event]
	health     *health.HealthChecker
	metrics    *metrics.Registry
	logger     logging.Logger
	cfg        config.ServerConfig
	staleAfter time.Duration
	upgrader   websocket.Upgrader

	unsubscribe func()
	closeOnce   sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithMonitor exposes m through the monitor, events and health routes.
func WithMonitor(m *monitor.Monitor) Option {
	return func(s *Server) {
		s.monitor = m
	}
}

// WithMetrics records HTTP metrics and serves registry on /metrics.
func WithMetrics(registry *metrics.Registry) Option {
	return func(s *Server) {
		s.metrics = registry
	}
}

// WithLogger sets the server's logger. The default discards output.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStaleAfter marks /health degraded when the last monitor result is
// older than d. Zero disables the check.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Server) {
		s.staleAfter = d
	}
}

// NewServer creates an API server. Requests are analyzed with analyzer's
// configuration plus any per-request overrides; a nil analyzer uses the
// defaults.
func NewServer(analyzer *resilience.Analyzer, cfg config.ServerConfig, opts ...Option) *Server {
	if analyzer == nil {
		analyzer, _ = resilience.NewAnalyzer(resilience.DefaultConfig())
	}
	s := &Server{
		analyzer: analyzer,
		broker:   pubsub.NewPubSub[monitor.Event](pubsub.DefaultBuffer),
		health:   health.NewHealthChecker(health.WithCheckTimeout(cfg.HealthTimeout)),
		logger:   logging.NewNopLogger(),
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logging.Component("api"))

	if s.monitor != nil {
		s.unsubscribe = s.monitor.Subscribe(func(e monitor.Event) {
			s.broker.Publish(TopicEvents, e)
		})
	}
	s.registerHealthChecks()
	return s
}

func (s *Server) registerHealthChecks() {
	if s.monitor != nil {
		s.health.RegisterCheck("monitor", health.MonitorCheck(s.monitorState, s.staleAfter))
		s.health.RegisterReadinessCheck("monitor", health.ReadinessCheck(s.monitorState))
	} else {
		s.health.RegisterReadinessCheck("api", func() health.Check { return health.SimpleCheck("api") })
	}
	s.health.RegisterCheck("memory", health.MemoryCheck(memoryUsage))
	s.health.RegisterLivenessCheck("api", func() health.Check { return health.SimpleCheck("api") })
}

func (s *Server) monitorState() health.MonitorState {
	state := health.MonitorState{Running: s.monitor.State() == monitor.StateRunning}
	if snap := s.monitor.LastSnapshot(); snap != nil {
		state.HasResult = true
		state.MeetsThresholds = snap.Result.MeetsThresholds
		state.Score = snap.Result.Score
		state.Grade = snap.Result.Grade.String()
		state.CriticalSPOFs = len(snap.Result.CriticalSPOFs)
		state.LastCompleted = snap.CompletedAt
	}
	return state
}

func memoryUsage() (alloc, sys uint64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc, m.Sys
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /v1/spofs", s.handleSPOFs)
	mux.HandleFunc("POST /v1/optimizations", s.handleOptimizations)

	mux.HandleFunc("GET /v1/monitor/last", s.handleMonitorLast)
	mux.HandleFunc("GET /v1/monitor/status", s.handleMonitorStatus)
	mux.HandleFunc("GET /v1/events", s.handleEvents)

	mux.HandleFunc("GET /health", s.health.HTTPHandler())
	mux.HandleFunc("GET /health/ready", s.health.ReadinessHandler())
	mux.HandleFunc("GET /health/live", s.health.LivenessHandler())
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mws := []func(http.Handler) http.Handler{
		middleware.PanicRecovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
	}
	if s.metrics != nil {
		mws = append(mws, middleware.Metrics(s.metrics))
	}
	if s.cfg.MaxBodyBytes > 0 {
		mws = append(mws, middleware.BodySizeLimit(s.cfg.MaxBodyBytes))
	}
	return middleware.Chain(mux, mws...)
}

// Close detaches the server from the monitor and ends every event stream.
// The monitor itself is left running.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.broker.Shutdown()
	})
}
