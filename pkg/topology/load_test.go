package topology

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const starYAML = `
id: fleet-eu
mode: star
nodes:
  - id: A
    role: coordinator
    status: active
    priority: high
  - id: B
    role: worker
  - id: C
    role: worker
edges:
  - id: ab
    source: A
    target: B
    kind: coordination
    weight: 1.0
    bidirectional: true
  - id: ac
    source: A
    target: C
    kind: data
    weight: 0.5
`

const starJSON = `{
  "id": "fleet-eu",
  "nodes": [{"id": "A", "role": "coordinator"}, {"id": "B", "role": "worker"}],
  "edges": [{"id": "ab", "source": "A", "target": "B", "kind": "control", "weight": 2, "bidirectional": true}]
}`

// TestParse_YAML tests decoding a YAML snapshot
func TestParse_YAML(t *testing.T) {
	tp, err := Parse([]byte(starYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if tp.ID != "fleet-eu" || tp.Mode != ModeStar {
		t.Errorf("Unexpected header %q %q", tp.ID, tp.Mode)
	}
	if len(tp.Nodes) != 3 || len(tp.Edges) != 2 {
		t.Fatalf("Expected 3 nodes and 2 edges, got %d and %d", len(tp.Nodes), len(tp.Edges))
	}
	if tp.Edges[1].Bidirectional {
		t.Error("edge ac should default to unidirectional")
	}
	if tp.Nodes[0].Priority != PriorityHigh {
		t.Errorf("Priority = %q", tp.Nodes[0].Priority)
	}
}

// TestParse_JSON tests decoding a JSON snapshot
func TestParse_JSON(t *testing.T) {
	tp, err := Parse([]byte(starJSON), FormatJSON)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if tp.Edges[0].Kind != KindControl || tp.Edges[0].Weight != 2 {
		t.Errorf("Unexpected edge %+v", tp.Edges[0])
	}
}

// TestParse_Rejects tests unknown fields, invalid snapshots and formats
func TestParse_Rejects(t *testing.T) {
	if _, err := Parse([]byte(`{"nodes": [], "bogus": 1}`), FormatJSON); err == nil {
		t.Error("Expected unknown field error")
	}
	if _, err := Parse([]byte("nodes: []\nextra: true\n"), FormatYAML); err == nil {
		t.Error("Expected unknown yaml field error")
	}
	bad := `{"nodes": [{"id": "A", "role": "worker"}], "edges": [{"id": "e", "source": "A", "target": "B", "kind": "data", "weight": 1}]}`
	if _, err := Parse([]byte(bad), FormatJSON); !errors.Is(err, ErrUnknownEndpoint) {
		t.Errorf("Expected ErrUnknownEndpoint, got %v", err)
	}
	if _, err := Parse([]byte(starJSON), Format("toml")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat, got %v", err)
	}
}

// TestLoad tests reading snapshots from disk
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eu-west.yml")
	noID := "nodes:\n  - id: A\n    role: worker\n"
	if err := os.WriteFile(path, []byte(noID), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	tp, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tp.ID != "eu-west" {
		t.Errorf("Expected id from file name, got %q", tp.ID)
	}
	if tp.Timestamp.IsZero() {
		t.Error("Expected timestamp from file mtime")
	}

	if _, err := Load(filepath.Join(dir, "fleet.txt")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat, got %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

// TestLoad_Example tests the shipped example fleet file
func TestLoad_Example(t *testing.T) {
	tp, err := Load(filepath.Join("..", "..", "examples", "star-fleet", "fleet.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tp.ID != "star" || tp.Mode != ModeStar {
		t.Errorf("Expected star/star, got %q/%q", tp.ID, tp.Mode)
	}
	if len(tp.Nodes) != 5 || len(tp.Edges) != 4 {
		t.Errorf("Expected 5 nodes and 4 edges, got %d and %d", len(tp.Nodes), len(tp.Edges))
	}
}
