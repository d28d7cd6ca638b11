package algorithms

import (
	"errors"
	"fmt"
)

// Severity classifies how much of the fleet a SPOF takes down.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Impact percentage thresholds for each severity.
const (
	CriticalImpact = 50.0
	HighImpact     = 25.0
	MediumImpact   = 10.0
)

// ErrUnknownSeverity is returned when parsing an unrecognized severity name.
var ErrUnknownSeverity = errors.New("unknown severity")

// SeverityForImpact maps an impact percentage to its severity tier.
func SeverityForImpact(impact float64) Severity {
	switch {
	case impact >= CriticalImpact:
		return SeverityCritical
	case impact >= HighImpact:
		return SeverityHigh
	case impact >= MediumImpact:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// ParseSeverity is the inverse of String.
func ParseSeverity(name string) (Severity, error) {
	switch name {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return SeverityLow, fmt.Errorf("%w: %q", ErrUnknownSeverity, name)
}

func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityLow || s > SeverityCritical {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSeverity, int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
