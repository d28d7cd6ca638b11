package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func healthy() Check { return Check{Status: StatusHealthy} }

// TestProbesAreIndependent tests that each probe only runs its own checks
func TestProbesAreIndependent(t *testing.T) {
	hc := NewHealthChecker()
	var mu sync.Mutex
	ran := map[string]int{}
	record := func(name string) CheckFunc {
		return func() Check {
			mu.Lock()
			ran[name]++
			mu.Unlock()
			return healthy()
		}
	}
	hc.RegisterCheck("monitor", record("monitor"))
	hc.RegisterReadinessCheck("monitor_ready", record("monitor_ready"))
	hc.RegisterLivenessCheck("api", record("api"))

	cases := []struct {
		probe Probe
		want  string
	}{
		{ProbeHealth, "monitor"},
		{ProbeReadiness, "monitor_ready"},
		{ProbeLiveness, "api"},
	}
	for _, tc := range cases {
		resp := hc.Run(tc.probe)
		if resp.Probe != tc.probe {
			t.Errorf("Probe = %s, want %s", resp.Probe, tc.probe)
		}
		if len(resp.Checks) != 1 {
			t.Errorf("%s ran %d checks, want 1", tc.probe, len(resp.Checks))
		}
		if _, ok := resp.Checks[tc.want]; !ok {
			t.Errorf("%s response missing %q", tc.probe, tc.want)
		}
	}
	for name, n := range ran {
		if n != 1 {
			t.Errorf("%s ran %d times, want 1", name, n)
		}
	}
}

// TestRegisterReplaces tests that a second registration under a name wins
func TestRegisterReplaces(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("monitor", func() Check { return Check{Status: StatusUnhealthy} })
	hc.RegisterCheck("monitor", healthy)

	if got := hc.Check().Status; got != StatusHealthy {
		t.Errorf("Status = %s, want healthy", got)
	}
}

// TestStatusWorse tests the ordering used to aggregate checks
func TestStatusWorse(t *testing.T) {
	tests := []struct {
		a, b, want Status
	}{
		{StatusHealthy, StatusHealthy, StatusHealthy},
		{StatusHealthy, StatusDegraded, StatusDegraded},
		{StatusDegraded, StatusHealthy, StatusDegraded},
		{StatusDegraded, StatusUnhealthy, StatusUnhealthy},
		{StatusUnhealthy, StatusDegraded, StatusUnhealthy},
		{StatusHealthy, Status("bogus"), Status("bogus")},
	}
	for _, tt := range tests {
		if got := tt.a.Worse(tt.b); got != tt.want {
			t.Errorf("%s.Worse(%s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

// TestRunAggregation tests that the worst check decides the probe status
func TestRunAggregation(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"fleet below thresholds", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"monitor stopped", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for i, status := range tt.statuses {
				hc.RegisterCheck(string(rune('a'+i)), func() Check { return Check{Status: status} })
			}
			resp := hc.Check()
			if resp.Status != tt.want {
				t.Errorf("Status = %s, want %s", resp.Status, tt.want)
			}
			if len(resp.Checks) != len(tt.statuses) {
				t.Errorf("len(Checks) = %d, want %d", len(resp.Checks), len(tt.statuses))
			}
		})
	}
}

// TestRunFillsMetadata tests names, timestamps and durations set by the checker
func TestRunFillsMetadata(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("slow", func() Check {
		time.Sleep(10 * time.Millisecond)
		return healthy()
	})

	before := time.Now()
	resp := hc.Check()
	after := time.Now()

	if resp.Timestamp.Before(before) || resp.Timestamp.After(after) {
		t.Errorf("Timestamp %v outside [%v, %v]", resp.Timestamp, before, after)
	}
	check := resp.Checks["slow"]
	if check.Name != "slow" {
		t.Errorf("Name = %q, want the registration name", check.Name)
	}
	if check.DurationMs < 10 {
		t.Errorf("DurationMs = %v, want >= 10", check.DurationMs)
	}
	if check.LastChecked.IsZero() {
		t.Error("LastChecked not set")
	}
	if resp.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %v", resp.UptimeSeconds)
	}
}

// TestRunTimeout tests that a hung check turns the probe unhealthy
func TestRunTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	hc := NewHealthChecker(WithCheckTimeout(20 * time.Millisecond))
	hc.RegisterReadinessCheck("monitor", func() Check {
		<-release
		return healthy()
	})
	hc.RegisterReadinessCheck("api", healthy)

	start := time.Now()
	resp := hc.CheckReadiness()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("probe took %v, want it bounded by the timeout", elapsed)
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("Status = %s, want unhealthy", resp.Status)
	}
	if got := resp.Checks["monitor"]; got.Status != StatusUnhealthy || got.Message == "" {
		t.Errorf("monitor check = %+v, want unhealthy with a message", got)
	}
	if got := resp.Checks["api"].Status; got != StatusHealthy {
		t.Errorf("api check = %s, want healthy", got)
	}
}

// TestRunConcurrent tests that checks run in parallel
func TestRunConcurrent(t *testing.T) {
	hc := NewHealthChecker()
	for _, name := range []string{"a", "b", "c", "d"} {
		hc.RegisterCheck(name, func() Check {
			time.Sleep(50 * time.Millisecond)
			return healthy()
		})
	}
	start := time.Now()
	hc.Check()
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("four 50ms checks took %v", elapsed)
	}
}

// TestSimpleCheck tests the always-healthy check
func TestSimpleCheck(t *testing.T) {
	check := SimpleCheck("api")
	if check.Name != "api" || check.Status != StatusHealthy {
		t.Errorf("SimpleCheck = %+v", check)
	}
	if check.LastChecked.IsZero() {
		t.Error("LastChecked not set")
	}
}

// TestMonitorCheck tests the fleet status derived from monitor state
func TestMonitorCheck(t *testing.T) {
	fresh := time.Now()
	tests := []struct {
		name           string
		state          MonitorState
		staleAfter     time.Duration
		expectedStatus Status
		expectedMsg    string
	}{
		{
			name:           "stopped",
			state:          MonitorState{Running: false},
			expectedStatus: StatusUnhealthy,
			expectedMsg:    "Monitor stopped",
		},
		{
			name:           "no result yet",
			state:          MonitorState{Running: true},
			expectedStatus: StatusHealthy,
			expectedMsg:    "Awaiting first cycle",
		},
		{
			name:           "below thresholds",
			state:          MonitorState{Running: true, HasResult: true, Score: 0.13, Grade: "F", CriticalSPOFs: 1, LastCompleted: fresh},
			expectedStatus: StatusDegraded,
			expectedMsg:    "Resilience below thresholds",
		},
		{
			name:           "within thresholds",
			state:          MonitorState{Running: true, HasResult: true, MeetsThresholds: true, Score: 1, Grade: "A", LastCompleted: fresh},
			staleAfter:     time.Minute,
			expectedStatus: StatusHealthy,
			expectedMsg:    "Resilience within thresholds",
		},
		{
			name:           "stale result",
			state:          MonitorState{Running: true, HasResult: true, MeetsThresholds: true, Score: 1, Grade: "A", LastCompleted: fresh.Add(-time.Hour)},
			staleAfter:     time.Minute,
			expectedStatus: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := MonitorCheck(func() MonitorState { return tt.state }, tt.staleAfter)()

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
			if tt.expectedMsg != "" && check.Message != tt.expectedMsg {
				t.Errorf("expected message %q, got %q", tt.expectedMsg, check.Message)
			}
			if check.Details["running"] != tt.state.Running {
				t.Errorf("expected running=%v in details", tt.state.Running)
			}
			if _, ok := check.Details["score"]; ok != tt.state.HasResult {
				t.Errorf("score detail present=%v, want %v", ok, tt.state.HasResult)
			}
		})
	}
}

// TestReadinessCheck tests readiness across monitor lifecycle states
func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		name           string
		state          MonitorState
		expectedStatus Status
	}{
		{"stopped", MonitorState{}, StatusUnhealthy},
		{"running without result", MonitorState{Running: true}, StatusDegraded},
		{"running with failing result", MonitorState{Running: true, HasResult: true}, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := ReadinessCheck(func() MonitorState { return tt.state })()
			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
		})
	}
}

// TestMemoryCheck tests the heap usage threshold
func TestMemoryCheck(t *testing.T) {
	tests := []struct {
		name           string
		alloc          uint64
		sys            uint64
		expectedStatus Status
		expectedMsg    string
	}{
		{
			name:           "normal usage",
			alloc:          50,
			sys:            100,
			expectedStatus: StatusHealthy,
			expectedMsg:    "Memory usage normal",
		},
		{
			name:           "high usage (90%)",
			alloc:          90,
			sys:            100,
			expectedStatus: StatusHealthy,
			expectedMsg:    "Memory usage normal",
		},
		{
			name:           "high usage (91%)",
			alloc:          91,
			sys:            100,
			expectedStatus: StatusDegraded,
			expectedMsg:    "High memory usage",
		},
		{
			name:           "unknown system memory",
			alloc:          10,
			sys:            0,
			expectedStatus: StatusHealthy,
			expectedMsg:    "Memory usage normal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkFunc := MemoryCheck(func() (uint64, uint64) {
				return tt.alloc, tt.sys
			})

			check := checkFunc()

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
			if check.Message != tt.expectedMsg {
				t.Errorf("expected message %q, got %q", tt.expectedMsg, check.Message)
			}
		})
	}
}

// TestStatusCode tests the HTTP status per probe and outcome
func TestStatusCode(t *testing.T) {
	tests := []struct {
		probe  Probe
		status Status
		want   int
	}{
		{ProbeHealth, StatusHealthy, http.StatusOK},
		{ProbeHealth, StatusDegraded, http.StatusOK},
		{ProbeHealth, StatusUnhealthy, http.StatusServiceUnavailable},
		{ProbeReadiness, StatusHealthy, http.StatusOK},
		{ProbeReadiness, StatusDegraded, http.StatusServiceUnavailable},
		{ProbeReadiness, StatusUnhealthy, http.StatusServiceUnavailable},
		{ProbeLiveness, StatusHealthy, http.StatusOK},
		{ProbeLiveness, StatusDegraded, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.probe, tt.status); got != tt.want {
			t.Errorf("StatusCode(%s, %s) = %d, want %d", tt.probe, tt.status, got, tt.want)
		}
	}
}

// TestHandlers tests the JSON body and headers of each probe endpoint
func TestHandlers(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("monitor", func() Check {
		return Check{Status: StatusDegraded, Message: "Resilience below thresholds", Details: map[string]any{"grade": "F"}}
	})
	hc.RegisterReadinessCheck("monitor_ready", func() Check { return Check{Status: StatusDegraded} })
	hc.RegisterLivenessCheck("api", healthy)

	tests := []struct {
		handler    http.HandlerFunc
		probe      Probe
		wantCode   int
		wantStatus Status
	}{
		{hc.HTTPHandler(), ProbeHealth, http.StatusOK, StatusDegraded},
		{hc.ReadinessHandler(), ProbeReadiness, http.StatusServiceUnavailable, StatusDegraded},
		{hc.LivenessHandler(), ProbeLiveness, http.StatusOK, StatusHealthy},
	}
	for _, tt := range tests {
		t.Run(string(tt.probe), func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
				t.Errorf("Cache-Control = %q", cc)
			}

			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Probe != tt.probe || resp.Status != tt.wantStatus {
				t.Errorf("response = %s/%s, want %s/%s", resp.Probe, resp.Status, tt.probe, tt.wantStatus)
			}
		})
	}

	rec := httptest.NewRecorder()
	hc.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := resp.Checks["monitor"]; got.Message != "Resilience below thresholds" || got.Details["grade"] != "F" {
		t.Errorf("monitor check = %+v", got)
	}
}

// TestConcurrentRegisterAndRun tests registration racing with probes
func TestConcurrentRegisterAndRun(t *testing.T) {
	hc := NewHealthChecker()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			hc.RegisterCheck(string(rune('a'+i)), healthy)
		}()
		go func() {
			defer wg.Done()
			hc.Check()
		}()
	}
	wg.Wait()

	if got := len(hc.Check().Checks); got != 10 {
		t.Errorf("len(Checks) = %d, want 10", got)
	}
}
