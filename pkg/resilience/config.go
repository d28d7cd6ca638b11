package resilience

import (
	"fmt"
	"slices"
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/algorithms"
	"github.com/dd0wney/cluso-fleetguard/pkg/parallel"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
	"github.com/dd0wney/cluso-fleetguard/pkg/validation"
)

// Config controls one resilience analysis.
type Config struct {
	// Thresholds
	MinResilienceScore float64 `json:"minResilienceScore" yaml:"minResilienceScore"` // Below this the result fails thresholds (default: 0.6)
	MaxCriticalSpofs   int     `json:"maxCriticalSpofs" yaml:"maxCriticalSpofs"`     // Above this the result fails thresholds (default: 0)

	// AnalyzeAllSpofs false stops the SPOF scan after the first critical SPOF.
	AnalyzeAllSpofs bool `json:"analyzeAllSpofs" yaml:"analyzeAllSpofs"`

	// ConnectionTypes lists the edge kinds kept in the graph. Empty means all.
	ConnectionTypes []topology.ConnectionKind `json:"connectionTypes,omitempty" yaml:"connectionTypes,omitempty"`

	// Timeout is the hard deadline of one analysis. Zero disables it.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Tuning
	Workers            int                     `json:"workers,omitempty" yaml:"workers,omitempty"`                       // SPOF and redundancy scan workers (default: GOMAXPROCS)
	PathCap            int                     `json:"pathCap,omitempty" yaml:"pathCap,omitempty"`                       // Edge-disjoint paths counted per pair (default: 3)
	MaxRedundancyPairs int                     `json:"maxRedundancyPairs,omitempty" yaml:"maxRedundancyPairs,omitempty"` // Pair budget for redundancy (default: 20000)
	MaxSuggestions     int                     `json:"maxSuggestions,omitempty" yaml:"maxSuggestions,omitempty"`         // SPOFs considered by the advisor (default: 5)
	SuggestionKind     topology.ConnectionKind `json:"suggestionKind,omitempty" yaml:"suggestionKind,omitempty"`         // Kind of suggested edges (default: coordination)
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		MinResilienceScore: 0.6,
		MaxCriticalSpofs:   0,
		AnalyzeAllSpofs:    true,
		ConnectionTypes:    topology.AllConnectionKinds(),
		Timeout:            30 * time.Second,
		Workers:            parallel.DefaultWorkers(),
		PathCap:            algorithms.DefaultPathCap,
		MaxRedundancyPairs: algorithms.DefaultMaxRedundancyPairs,
		MaxSuggestions:     5,
		SuggestionKind:     topology.KindCoordination,
	}
}

// Validate checks if configuration is valid
func (c Config) Validate() error {
	v := validation.NewConfigValidator("resilience.Config").
		RangeFloat("MinResilienceScore", c.MinResilienceScore, 0, 1).
		NonNegative("MaxCriticalSpofs", c.MaxCriticalSpofs).
		NonNegative("Workers", c.Workers).
		NonNegative("PathCap", c.PathCap).
		NonNegative("MaxRedundancyPairs", c.MaxRedundancyPairs).
		NonNegative("MaxSuggestions", c.MaxSuggestions).
		MinDuration("Timeout", c.Timeout, 0).
		Custom("ConnectionTypes", func() error {
			for _, k := range c.ConnectionTypes {
				if !k.Valid() {
					return fmt.Errorf("unknown connection kind %q", k)
				}
			}
			return nil
		}).
		When(c.SuggestionKind != "", func(v *validation.ConfigValidator) {
			v.Custom("SuggestionKind", func() error {
				if !c.SuggestionKind.Valid() {
					return fmt.Errorf("unknown connection kind %q", c.SuggestionKind)
				}
				return nil
			})
		})

	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// normalized fills zero tuning fields with their defaults. Thresholds and
// AnalyzeAllSpofs are taken as given.
func (c Config) normalized() Config {
	def := DefaultConfig()
	c.Workers = validation.DefaultOrInt(c.Workers, def.Workers)
	c.PathCap = validation.DefaultOrInt(c.PathCap, def.PathCap)
	c.MaxRedundancyPairs = validation.DefaultOrInt(c.MaxRedundancyPairs, def.MaxRedundancyPairs)
	c.MaxSuggestions = validation.DefaultOrInt(c.MaxSuggestions, def.MaxSuggestions)
	c.SuggestionKind = validation.DefaultOr(c.SuggestionKind, def.SuggestionKind)
	if len(c.ConnectionTypes) == 0 {
		c.ConnectionTypes = def.ConnectionTypes
	} else {
		c.ConnectionTypes = canonicalKinds(c.ConnectionTypes)
	}
	// Suggested edges of a filtered-out kind could never change the score.
	if !slices.Contains(c.ConnectionTypes, c.SuggestionKind) {
		c.SuggestionKind = c.ConnectionTypes[0]
	}
	return c
}

// canonicalKinds dedupes kinds into the AllConnectionKinds order.
func canonicalKinds(kinds []topology.ConnectionKind) []topology.ConnectionKind {
	out := make([]topology.ConnectionKind, 0, len(kinds))
	for _, k := range topology.AllConnectionKinds() {
		if slices.Contains(kinds, k) {
			out = append(out, k)
		}
	}
	return out
}
