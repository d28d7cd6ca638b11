package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Component names the subsystem emitting the entry (analyzer, monitor, api)
func Component(name string) Field {
	return String(componentKey, name)
}

// NodeID identifies a fleet agent
func NodeID(id string) Field {
	return String("node_id", id)
}

func EdgeID(id string) Field {
	return String("edge_id", id)
}

func TopologyID(id string) Field {
	return String("topology_id", id)
}

// Phase names an analysis pipeline stage (build, min_cut, spof_scan, score)
func Phase(name string) Field {
	return String("phase", name)
}

func Score(v float64) Field {
	return Float64("score", v)
}

func Grade(g string) Field {
	return String("grade", g)
}

func Cycle(n uint64) Field {
	return Uint64("cycle", n)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}

func Path(p string) Field {
	return String("path", p)
}
