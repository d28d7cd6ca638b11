package resilience

import (
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/algorithms"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
)

// Result is the resilience assessment of one topology snapshot. It is
// never modified after it is returned.
type Result struct {
	TopologyID string `json:"topologyId,omitempty"`

	Score float64 `json:"score"`
	Grade Grade   `json:"grade"`

	MinCut                float64     `json:"minCut"`
	MinCutPartition       [2][]string `json:"minCutPartition"`
	AveragePathRedundancy float64     `json:"averagePathRedundancy"`
	ConnectedPairFraction float64     `json:"connectedPairFraction"`

	SPOFs         []algorithms.SPOF `json:"spofs"`
	CriticalSPOFs []algorithms.SPOF `json:"criticalSpofs"`

	// VulnerablePartitions are the components that exist already plus
	// those cut off by each critical SPOF, deduplicated.
	VulnerablePartitions [][]string `json:"vulnerablePartitions"`

	Recommendations []string `json:"recommendations"`

	// MeetsThresholds is false when the score is below MinResilienceScore
	// or critical SPOFs exceed MaxCriticalSpofs, whatever the grade.
	MeetsThresholds     bool     `json:"meetsThresholds"`
	ThresholdViolations []string `json:"thresholdViolations"`

	NodeCount       int                       `json:"nodeCount"`
	EdgeCount       int                       `json:"edgeCount"`
	ConnectionTypes []topology.ConnectionKind `json:"connectionTypes"`

	// Duration is the analysis latency. It is the only field that varies
	// between runs over the same snapshot.
	Duration time.Duration `json:"duration"`
}

// CriticalIDs returns the node ids of critical SPOFs in result order.
func (r *Result) CriticalIDs() []string {
	ids := make([]string, len(r.CriticalSPOFs))
	for i, s := range r.CriticalSPOFs {
		ids[i] = s.NodeID
	}
	return ids
}

// SPOF returns the SPOF entry for a node id.
func (r *Result) SPOF(id string) (algorithms.SPOF, bool) {
	for _, s := range r.SPOFs {
		if s.NodeID == id {
			return s, true
		}
	}
	return algorithms.SPOF{}, false
}
