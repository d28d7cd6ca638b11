package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func newTestLogger(buf *bytes.Buffer, level Level) *JSONLogger {
	l := NewJSONLogger(buf, level)
	l.now = fixedClock
	return l
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("Failed to unmarshal log line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{" Warn ", WarnLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

// TestLevelText tests text round-tripping and strict unmarshalling
func TestLevelText(t *testing.T) {
	var l Level
	if err := l.UnmarshalText([]byte("debug")); err != nil || l != DebugLevel {
		t.Fatalf("UnmarshalText(debug) = %v, %v", l, err)
	}
	text, err := l.MarshalText()
	if err != nil || string(text) != "DEBUG" {
		t.Errorf("MarshalText = %q, %v", text, err)
	}
	if err := l.UnmarshalText([]byte("verbose")); err == nil {
		t.Error("UnmarshalText(verbose) should fail")
	}
	if l != DebugLevel {
		t.Errorf("failed UnmarshalText changed level to %v", l)
	}
}

func TestDomainFields(t *testing.T) {
	tests := []struct {
		field Field
		key   string
		value any
	}{
		{NodeID("agent-1"), "node_id", "agent-1"},
		{TopologyID("snap-7"), "topology_id", "snap-7"},
		{Phase("mincut"), "phase", "mincut"},
		{Score(0.75), "score", 0.75},
		{Grade("B"), "grade", "B"},
		{Cycle(3), "cycle", uint64(3)},
		{Count(4), "count", 4},
		{Latency(2 * time.Second), "latency", "2s"},
		{Error(errors.New("boom")), "error", "boom"},
		{Error(nil), "error", nil},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if tt.field.Key != tt.key {
				t.Errorf("Key = %q, want %q", tt.field.Key, tt.key)
			}
			if tt.field.Value != tt.value {
				t.Errorf("Value = %v, want %v", tt.field.Value, tt.value)
			}
		})
	}
}

func TestJSONLogger_BasicLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, DebugLevel)

	logger.Info("analysis complete", Score(0.5), NodeID("a"))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != "INFO" {
		t.Errorf("Level = %v, want INFO", entry.Level)
	}
	if entry.Message != "analysis complete" {
		t.Errorf("Message = %q", entry.Message)
	}
	if entry.Time != "2026-01-02T03:04:05Z" {
		t.Errorf("Time = %q", entry.Time)
	}
	if entry.Fields["node_id"] != "a" {
		t.Errorf("Fields[node_id] = %v, want a", entry.Fields["node_id"])
	}
}

func TestJSONLogger_ComponentLifted(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, InfoLevel).With(Component("monitor"))

	logger.Warn("cycle timed out")

	entries := decodeLines(t, &buf)
	if entries[0].Component != "monitor" {
		t.Errorf("Component = %q, want monitor", entries[0].Component)
	}
	if _, ok := entries[0].Fields["component"]; ok {
		t.Error("component should not be duplicated in fields")
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, WarnLevel)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != "WARN" || entries[1].Level != "ERROR" {
		t.Errorf("Unexpected levels %s, %s", entries[0].Level, entries[1].Level)
	}
}

func TestJSONLogger_WithDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	parent := newTestLogger(&buf, InfoLevel)
	child := parent.With(String("service", "fleetguard"))

	child.Info("child")
	parent.Info("parent")

	entries := decodeLines(t, &buf)
	if entries[0].Fields["service"] != "fleetguard" {
		t.Errorf("child field missing: %v", entries[0].Fields)
	}
	if entries[1].Fields != nil {
		t.Errorf("parent should have no fields, got %v", entries[1].Fields)
	}
}

func TestJSONLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, ErrorLevel)

	logger.Info("dropped")
	logger.SetLevel(InfoLevel)
	logger.Info("kept")

	if logger.GetLevel() != InfoLevel {
		t.Errorf("GetLevel() = %v, want INFO", logger.GetLevel())
	}
	if entries := decodeLines(t, &buf); len(entries) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(entries))
	}
}

func TestGlobalHelperFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefaultLogger(newTestLogger(&buf, DebugLevel))
	defer SetDefaultLogger(NewNopLogger())

	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	ErrorLog("error msg")

	entries := decodeLines(t, &buf)
	levels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if len(entries) != len(levels) {
		t.Fatalf("Expected %d entries, got %d", len(levels), len(entries))
	}
	for i, want := range levels {
		if entries[i].Level != want {
			t.Errorf("Entry %d level = %v, want %v", i, entries[i].Level, want)
		}
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, DebugLevel)

	timer := StartTimer(logger, "phase finished", Phase("spof"))
	if d := timer.End(Count(2)); d < 0 {
		t.Errorf("negative duration %v", d)
	}
	timer.EndError(errors.New("deadline"))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Fields["phase"] != "spof" || entries[0].Fields["latency"] == nil {
		t.Errorf("End fields = %v", entries[0].Fields)
	}
	if entries[1].Level != "ERROR" || entries[1].Fields["error"] != "deadline" {
		t.Errorf("EndError entry = %+v", entries[1])
	}
}

func TestNopLogger(t *testing.T) {
	var l Logger = NewNopLogger()
	l.Info("ignored")
	if l.With(NodeID("x")) == nil {
		t.Error("With() returned nil")
	}
}

func BenchmarkJSONLogger_Info(b *testing.B) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		logger.Info("cycle complete", Cycle(uint64(i)), Score(0.8))
	}
}
