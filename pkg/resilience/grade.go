package resilience

import (
	"errors"
	"fmt"
)

// Grade is the letter summary of a resilience score.
type Grade int

const (
	GradeF Grade = iota
	GradeD
	GradeC
	GradeB
	GradeA
)

// Score cutoffs per grade.
const (
	GradeACutoff = 0.9
	GradeBCutoff = 0.75
	GradeCCutoff = 0.6
	GradeDCutoff = 0.4
)

// ErrUnknownGrade is returned when parsing an unrecognized grade letter.
var ErrUnknownGrade = errors.New("unknown grade")

// GradeForScore maps a 0-1 score to its letter grade.
func GradeForScore(score float64) Grade {
	switch {
	case score >= GradeACutoff:
		return GradeA
	case score >= GradeBCutoff:
		return GradeB
	case score >= GradeCCutoff:
		return GradeC
	case score >= GradeDCutoff:
		return GradeD
	default:
		return GradeF
	}
}

func (g Grade) String() string {
	switch g {
	case GradeA:
		return "A"
	case GradeB:
		return "B"
	case GradeC:
		return "C"
	case GradeD:
		return "D"
	case GradeF:
		return "F"
	default:
		return fmt.Sprintf("Grade(%d)", int(g))
	}
}

func (g Grade) MarshalText() ([]byte, error) {
	if g < GradeF || g > GradeA {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGrade, int(g))
	}
	return []byte(g.String()), nil
}

func (g *Grade) UnmarshalText(text []byte) error {
	for _, candidate := range []Grade{GradeA, GradeB, GradeC, GradeD, GradeF} {
		if candidate.String() == string(text) {
			*g = candidate
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownGrade, text)
}
