package resilience

import "errors"

var (
	// ErrAnalysisTimeout wraps a context deadline hit during analysis.
	ErrAnalysisTimeout = errors.New("analysis timed out")

	// ErrAnalysisFault wraps an internal failure recovered from an algorithm.
	ErrAnalysisFault = errors.New("analysis fault")

	// ErrInvalidConfig is returned for configurations that fail Validate.
	ErrInvalidConfig = errors.New("invalid resilience config")
)
