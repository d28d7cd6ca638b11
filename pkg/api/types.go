package api

import (
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/algorithms"
	"github.com/dd0wney/cluso-fleetguard/pkg/resilience"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
)

// AnalyzeRequest is the body of POST /v1/analyze and POST /v1/spofs.
type AnalyzeRequest struct {
	Topology *topology.Topology `json:"topology" validate:"required"`
	Config   *ConfigOverrides   `json:"config,omitempty"`
}

// OptimizationsRequest is the body of POST /v1/optimizations. A missing
// result is computed from the topology first.
type OptimizationsRequest struct {
	Topology *topology.Topology `json:"topology" validate:"required"`
	Config   *ConfigOverrides   `json:"config,omitempty"`
	Result   *resilience.Result `json:"result,omitempty"`
}

// ConfigOverrides replaces individual fields of the server's analysis
// configuration for one request. Nil fields keep the server value.
type ConfigOverrides struct {
	MinResilienceScore *float64                  `json:"minResilienceScore,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxCriticalSpofs   *int                      `json:"maxCriticalSpofs,omitempty" validate:"omitempty,gte=0"`
	AnalyzeAllSpofs    *bool                     `json:"analyzeAllSpofs,omitempty"`
	ConnectionTypes    []topology.ConnectionKind `json:"connectionTypes,omitempty" validate:"omitempty,dive,oneof=coordination data control heartbeat"`
	TimeoutMs          *int64                    `json:"timeoutMs,omitempty" validate:"omitempty,gte=1,lte=300000"`
}

// apply returns cfg with the non-nil overrides written over it.
func (o *ConfigOverrides) apply(cfg resilience.Config) resilience.Config {
	if o == nil {
		return cfg
	}
	if o.MinResilienceScore != nil {
		cfg.MinResilienceScore = *o.MinResilienceScore
	}
	if o.MaxCriticalSpofs != nil {
		cfg.MaxCriticalSpofs = *o.MaxCriticalSpofs
	}
	if o.AnalyzeAllSpofs != nil {
		cfg.AnalyzeAllSpofs = *o.AnalyzeAllSpofs
	}
	if len(o.ConnectionTypes) > 0 {
		cfg.ConnectionTypes = o.ConnectionTypes
	}
	if o.TimeoutMs != nil {
		cfg.Timeout = time.Duration(*o.TimeoutMs) * time.Millisecond
	}
	return cfg
}

// SPOFsResponse is the body returned by POST /v1/spofs.
type SPOFsResponse struct {
	SPOFs []algorithms.SPOF `json:"spofs"`
	Count int               `json:"count"`
}

// OptimizationsResponse is the body returned by POST /v1/optimizations.
type OptimizationsResponse struct {
	Optimizations []resilience.Optimization `json:"optimizations"`
	Count         int                       `json:"count"`
}

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}
