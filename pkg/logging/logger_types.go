package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level represents a log level
type Level int

const (
	// DebugLevel is used for per-phase analysis timings and coalesced triggers
	DebugLevel Level = iota
	// InfoLevel is the default logging priority
	InfoLevel
	// WarnLevel is used for degraded resilience and timed out cycles
	WarnLevel
	// ErrorLevel is used for invalid topologies and recovered analysis faults
	ErrorLevel
)

var levelNames = [...]string{DebugLevel: "DEBUG", InfoLevel: "INFO", WarnLevel: "WARN", ErrorLevel: "ERROR"}

func (l Level) String() string {
	if l < DebugLevel || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel converts a case-insensitive level name to a Level. WARNING is
// accepted for WARN; unknown values map to InfoLevel.
func ParseLevel(s string) Level {
	if l, ok := lookupLevel(s); ok {
		return l
	}
	return InfoLevel
}

func lookupLevel(s string) (Level, bool) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return WarnLevel, true
	}
	for l, n := range levelNames {
		if n == name {
			return Level(l), true
		}
	}
	return InfoLevel, false
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText rejects unknown names, unlike ParseLevel.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, ok := lookupLevel(string(text))
	if !ok {
		return fmt.Errorf("unknown log level %q", text)
	}
	*l = parsed
	return nil
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// Logger is the interface for structured logging used by the analyzer,
// the monitor and the API server.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With creates a child logger with the given fields pre-set
	With(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// JSONLogger implements Logger with one JSON object per line
type JSONLogger struct {
	writer io.Writer
	level  Level
	fields []Field
	now    func() time.Time
	mu     *sync.Mutex // shared with children so lines never interleave
}

// LogEntry represents a single log entry in JSON format
type LogEntry struct {
	Time      string         `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// NopLogger is a logger that does nothing. Libraries default to it.
type NopLogger struct{}

func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Warn(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (n NopLogger) With(fields ...Field) Logger     { return n }
func (NopLogger) SetLevel(level Level)              {}
func (NopLogger) GetLevel() Level                   { return InfoLevel }

// NewNopLogger creates a logger that discards all output
func NewNopLogger() Logger {
	return NopLogger{}
}

// TimedOperation measures the duration of an analysis phase or cycle
type TimedOperation struct {
	logger Logger
	msg    string
	start  time.Time
	fields []Field
}
