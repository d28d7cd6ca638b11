package algorithms

import (
	"math"
	"sort"

	"github.com/dd0wney/cluso-fleetguard/pkg/fleetgraph"
)

// LinkScoreMethod selects the neighbourhood similarity formula.
type LinkScoreMethod int

const (
	// LinkCommonNeighbours scores by |N(u) ∩ N(v)|.
	LinkCommonNeighbours LinkScoreMethod = iota

	// LinkAdamicAdar scores by the sum over w in N(u) ∩ N(v) of 1/log|N(w)|,
	// weighting shared low-degree neighbours higher.
	LinkAdamicAdar

	// LinkPreferentialAttachment scores by |N(u)| * |N(v)|.
	LinkPreferentialAttachment
)

// LinkScore rates how much u and v already share a neighbourhood in the
// undirected graph. Scores of different methods are not comparable.
func LinkScore(g *fleetgraph.Graph, u, v int, method LinkScoreMethod) float64 {
	nu, nv := g.Neighbors(u), g.Neighbors(v)
	if method == LinkPreferentialAttachment {
		return float64(len(nu) * len(nv))
	}

	var score float64
	// Both neighbour lists are sorted.
	for i, j := 0, 0; i < len(nu) && j < len(nv); {
		switch {
		case nu[i] < nv[j]:
			i++
		case nu[i] > nv[j]:
			j++
		default:
			w := nu[i]
			i, j = i+1, j+1
			if method == LinkCommonNeighbours {
				score++
				continue
			}
			// A shared neighbour has degree >= 2, so the log is positive.
			score += 1 / math.Log(float64(len(g.Neighbors(w))))
		}
	}
	return score
}

// RankLinkTargets orders candidates for a new link that routes around node.
// Candidates adjacent to node rank last. The rest are ordered by Adamic-Adar
// similarity to node ascending, then by degree ascending, keeping the input
// order on ties. Linking to a node that shares little with node closes the
// longest detour; preferring low degree closes cycles through leaves.
func RankLinkTargets(g *fleetgraph.Graph, node int, candidates []int) []int {
	type ranked struct {
		idx      int
		adjacent bool
		overlap  float64
		degree   int
	}
	rs := make([]ranked, len(candidates))
	for i, c := range candidates {
		rs[i] = ranked{
			idx:      c,
			adjacent: g.Adjacent(c, node),
			overlap:  LinkScore(g, c, node, LinkAdamicAdar),
			degree:   len(g.Neighbors(c)),
		}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.adjacent != b.adjacent {
			return !a.adjacent
		}
		if a.overlap != b.overlap {
			return a.overlap < b.overlap
		}
		return a.degree < b.degree
	})

	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.idx
	}
	return out
}
