package algorithms

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-fleetguard/pkg/fleetgraph"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
)

func detect(t *testing.T, g *fleetgraph.Graph, opts SPOFOptions) []SPOF {
	t.Helper()
	spofs, err := DetectSPOFs(context.Background(), g, opts)
	if err != nil {
		t.Fatalf("DetectSPOFs failed: %v", err)
	}
	return spofs
}

// TestDetectSPOFs_Star tests that the hub of a star is a critical SPOF
func TestDetectSPOFs_Star(t *testing.T) {
	spofs := detect(t, starGraph(t, "B", "C", "D", "E"), SPOFOptions{})
	if len(spofs) != 1 {
		t.Fatalf("expected 1 SPOF, got %d: %+v", len(spofs), spofs)
	}

	s := spofs[0]
	if s.NodeID != "A" || s.Severity != SeverityCritical || s.Role != topology.RoleCoordinator {
		t.Errorf("unexpected SPOF %+v", s)
	}
	if s.ImpactPercentage != 100 {
		t.Errorf("impact = %v, want 100", s.ImpactPercentage)
	}
	if want := []string{"B", "C", "D", "E"}; !reflect.DeepEqual(s.DisconnectedAgents, want) {
		t.Errorf("disconnected = %v, want %v", s.DisconnectedAgents, want)
	}
	if s.DisconnectedCount != 4 || len(s.Partitions) != 4 {
		t.Errorf("count=%d partitions=%v", s.DisconnectedCount, s.Partitions)
	}
}

// TestDetectSPOFs_StarRecommendations tests the structural recommendation rules
func TestDetectSPOFs_StarRecommendations(t *testing.T) {
	s := detect(t, starGraph(t, "B", "C", "D", "E"), SPOFOptions{RecommendKind: topology.KindData})[0]

	want := []string{
		"add a redundant data edge between C and B",
		"provision a standby coordinator for A",
		"configure failover and health checks for A",
		"interconnect the 4 partitions cut off by A",
	}
	if !reflect.DeepEqual(s.Recommendations, want) {
		t.Errorf("recommendations = %q, want %q", s.Recommendations, want)
	}
}

// TestDetectSPOFs_Cycle tests that no node of a ring is a SPOF
func TestDetectSPOFs_Cycle(t *testing.T) {
	for _, n := range []int{3, 5, 9} {
		if spofs := detect(t, cycleGraph(t, n, 1), SPOFOptions{}); len(spofs) != 0 {
			t.Errorf("cycle %d: unexpected SPOFs %+v", n, spofs)
		}
	}
}

// TestDetectSPOFs_Path tests severity tiers and ordering along a line
func TestDetectSPOFs_Path(t *testing.T) {
	spofs := detect(t, pathGraph(t, "A", "B", "C", "D", "E"), SPOFOptions{Workers: 2})

	var got []string
	for _, s := range spofs {
		got = append(got, s.NodeID+":"+s.Severity.String())
	}
	if want := []string{"C:critical", "B:high", "D:high"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("SPOFs = %v, want %v", got, want)
	}

	// Removing C leaves two pairs; the one with the lower ids survives.
	if want := []string{"D", "E"}; !reflect.DeepEqual(spofs[0].DisconnectedAgents, want) {
		t.Errorf("C disconnects %v, want %v", spofs[0].DisconnectedAgents, want)
	}
	if spofs[1].ImpactPercentage != 25 {
		t.Errorf("B impact = %v, want 25", spofs[1].ImpactPercentage)
	}
}

// TestDetectSPOFs_StopAtFirstCritical tests the short-circuit scan
func TestDetectSPOFs_StopAtFirstCritical(t *testing.T) {
	spofs := detect(t, pathGraph(t, "A", "B", "C", "D", "E"), SPOFOptions{StopAtFirstCritical: true})

	var got []string
	for _, s := range spofs {
		got = append(got, s.NodeID)
	}
	if want := []string{"C", "B"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SPOFs = %v, want %v", got, want)
	}
}

// TestDetectSPOFs_Trivial tests graphs with fewer than two nodes
func TestDetectSPOFs_Trivial(t *testing.T) {
	for _, ids := range [][]string{nil, {"solo"}} {
		if spofs := detect(t, buildGraph(t, nodesOf(ids...)), SPOFOptions{}); len(spofs) != 0 {
			t.Errorf("%v: unexpected SPOFs %+v", ids, spofs)
		}
	}
}

// TestDetectSPOFs_Pair tests that a connected pair has no SPOF
func TestDetectSPOFs_Pair(t *testing.T) {
	if spofs := detect(t, pathGraph(t, "A", "B"), SPOFOptions{}); len(spofs) != 0 {
		t.Errorf("unexpected SPOFs %+v", spofs)
	}
}

// TestDetectSPOFs_NoEdges tests that every node of an edgeless fleet is a SPOF
func TestDetectSPOFs_NoEdges(t *testing.T) {
	spofs := detect(t, buildGraph(t, nodesOf("A", "B", "C")), SPOFOptions{})
	if len(spofs) != 3 {
		t.Fatalf("expected 3 SPOFs, got %+v", spofs)
	}
	for _, s := range spofs {
		if s.ImpactPercentage != 100 || s.Severity != SeverityCritical {
			t.Errorf("unexpected SPOF %+v", s)
		}
	}
}

// TestDetectSPOFs_Cancelled tests cancellation
func TestDetectSPOFs_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, short := range []bool{false, true} {
		_, err := DetectSPOFs(ctx, pathGraph(t, "A", "B", "C"), SPOFOptions{StopAtFirstCritical: short})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("short=%v: expected context.Canceled, got %v", short, err)
		}
	}
}

// TestSplitWithout_Anchor tests the anchor fallback when no component survives
func TestSplitWithout_Anchor(t *testing.T) {
	g := starGraph(t, "B", "C")
	split := SplitWithout(g, 0)
	if split.Survivor != nil {
		t.Fatalf("survivor = %v, want nil", split.Survivor)
	}
	anchor, rest := split.Anchor()
	if !reflect.DeepEqual(anchor, []int{1}) || !reflect.DeepEqual(rest, [][]int{{2}}) {
		t.Errorf("anchor=%v rest=%v", anchor, rest)
	}
	if got := LinkTarget(g, 0, anchor); got != 1 {
		t.Errorf("LinkTarget = %d, want 1", got)
	}
}

// TestLinkTarget_PrefersNonAdjacent tests choosing the node that shares the
// least with the SPOF
func TestLinkTarget_PrefersNonAdjacent(t *testing.T) {
	// X - A - B - C - D; removing A cuts X off. C shares B with A, D shares
	// nothing, so X-D closes the whole path into a ring.
	g := buildGraph(t, nodesOf("A", "B", "C", "D", "X"),
		link{"X", "A", 1}, link{"A", "B", 1}, link{"B", "C", 1}, link{"C", "D", 1})
	a, _ := g.Index("A")
	split := SplitWithout(g, a)
	if got := g.ID(LinkTarget(g, a, split.Survivor)); got != "D" {
		t.Errorf("LinkTarget = %s, want D", got)
	}
}

// TestSeverity_Thresholds tests the impact tiers
func TestSeverity_Thresholds(t *testing.T) {
	cases := map[float64]Severity{
		0: SeverityLow, 9.99: SeverityLow, 10: SeverityMedium, 24.9: SeverityMedium,
		25: SeverityHigh, 49.9: SeverityHigh, 50: SeverityCritical, 100: SeverityCritical,
	}
	for impact, want := range cases {
		if got := SeverityForImpact(impact); got != want {
			t.Errorf("SeverityForImpact(%v) = %v, want %v", impact, got, want)
		}
	}
}

// TestSeverity_Text tests the text encoding used in JSON
func TestSeverity_Text(t *testing.T) {
	data, err := json.Marshal(map[string]Severity{"s": SeverityHigh})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"s":"high"}` {
		t.Errorf("got %s", data)
	}

	var decoded map[string]Severity
	if err := json.Unmarshal([]byte(`{"s":"critical"}`), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["s"] != SeverityCritical {
		t.Errorf("decoded %v", decoded["s"])
	}

	if _, err := ParseSeverity("severe"); !errors.Is(err, ErrUnknownSeverity) {
		t.Errorf("expected ErrUnknownSeverity, got %v", err)
	}
	if !strings.HasPrefix(Severity(9).String(), "Severity(") {
		t.Errorf("unexpected String for out of range value")
	}
}
