package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-fleetguard/pkg/algorithms"
	"github.com/dd0wney/cluso-fleetguard/pkg/api"
	"github.com/dd0wney/cluso-fleetguard/pkg/monitor"
	"github.com/dd0wney/cluso-fleetguard/pkg/resilience"
	tt "github.com/dd0wney/cluso-fleetguard/pkg/topology/topologytest"
)

func writeStar(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(tt.Star("A", "B", "C", "D", "E"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "fleet.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

// execute runs the root command with fresh flag state.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, logLevel, jsonOutput, strict, traceEnabled = "", "error", false, false, false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// TestAnalyzeCommand_JSON tests the JSON output of analyze
func TestAnalyzeCommand_JSON(t *testing.T) {
	out, err := execute(t, "analyze", writeStar(t), "--json")
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, out)
	}

	var result resilience.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if result.Grade != resilience.GradeF {
		t.Errorf("Grade = %v, want F", result.Grade)
	}
	if len(result.CriticalSPOFs) != 1 || result.CriticalSPOFs[0].NodeID != "A" {
		t.Errorf("CriticalSPOFs = %+v, want [A]", result.CriticalSPOFs)
	}
}

// TestAnalyzeCommand_Strict tests the threshold exit error
func TestAnalyzeCommand_Strict(t *testing.T) {
	_, err := execute(t, "analyze", writeStar(t), "--strict")
	if !errors.Is(err, errThresholds) {
		t.Fatalf("err = %v, want errThresholds", err)
	}
}

// TestSPOFsCommand tests the styled SPOF listing
func TestSPOFsCommand(t *testing.T) {
	out, err := execute(t, "spofs", writeStar(t))
	if err != nil {
		t.Fatalf("spofs: %v", err)
	}
	if !strings.Contains(out, "Single points of failure (1)") || !strings.Contains(out, "critical") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

// TestSuggestCommand_JSON tests the JSON output of suggest
func TestSuggestCommand_JSON(t *testing.T) {
	out, err := execute(t, "suggest", writeStar(t), "--json")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	var resp api.OptimizationsResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if resp.Count == 0 || resp.Count != len(resp.Optimizations) {
		t.Fatalf("Count = %d with %d optimizations", resp.Count, len(resp.Optimizations))
	}
	if resp.Optimizations[0].ExpectedImprovement <= 0 {
		t.Errorf("best suggestion does not improve: %+v", resp.Optimizations[0])
	}
}

// TestCommands_MissingTopology tests that a topology file is required
func TestCommands_MissingTopology(t *testing.T) {
	for _, name := range []string{"analyze", "spofs", "suggest", "monitor"} {
		if _, err := execute(t, name); err == nil {
			t.Errorf("%s without a topology should fail", name)
		}
	}
}

// TestCommands_BadConfig tests that an invalid config file aborts the run
func TestCommands_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetguard.yaml")
	if err := os.WriteFile(path, []byte("analysis:\n  minResilienceScore: 3\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := execute(t, "analyze", writeStar(t), "--config", path); err == nil {
		t.Fatal("invalid config should fail")
	}
}

// TestRenderResult tests the styled report contents
func TestRenderResult(t *testing.T) {
	result, err := resilience.Analyze(t.Context(), tt.Star("A", "B", "C"), resilience.DefaultConfig())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	out := renderResult(result)
	for _, want := range []string{"Fleet resilience: star", "Grade", "F", "not met", "Threshold violations", "A"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

// TestRenderSPOFs_Empty tests the empty SPOF listing
func TestRenderSPOFs_Empty(t *testing.T) {
	out := renderSPOFs([]algorithms.SPOF{})
	if !strings.Contains(out, "(0)") || !strings.Contains(out, "none") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

// TestRenderEvent tests one line per event type
func TestRenderEvent(t *testing.T) {
	cases := []struct {
		event monitor.Event
		want  string
	}{
		{monitor.Event{Type: monitor.EventSPOFCriticalDetected, Node: "hub"}, "critical SPOF hub"},
		{monitor.Event{Type: monitor.EventSPOFResolved, Node: "hub"}, "resolved SPOF hub"},
		{monitor.Event{Type: monitor.EventResilienceDegraded, Score: 0.2, Threshold: 0.6}, "score 0.200 below 0.600"},
		{monitor.Event{Type: monitor.EventCriticalSpofsExceeded, Count: 2}, "2 critical SPOFs, max 0"},
		{monitor.Event{Type: monitor.EventAnalysisTimeout, ElapsedMs: 30000}, "after 30000ms"},
		{monitor.Event{Type: monitor.EventAnalysisError, Cause: "boom"}, "boom"},
	}
	for _, tc := range cases {
		out := renderEvent(tc.event)
		if !strings.Contains(out, tc.want) || !strings.Contains(out, string(tc.event.Type)) {
			t.Errorf("renderEvent(%s) = %q, want it to contain %q", tc.event.Type, out, tc.want)
		}
	}
}
