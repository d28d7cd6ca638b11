package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dd0wney/cluso-fleetguard/pkg/api/middleware"
	"github.com/dd0wney/cluso-fleetguard/pkg/logging"
	"github.com/dd0wney/cluso-fleetguard/pkg/resilience"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
	"github.com/dd0wney/cluso-fleetguard/pkg/validation"
)

// errBadRequest marks request bodies that could not be decoded or validated.
var errBadRequest = errors.New("bad request")

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("error encoding JSON response", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	response := ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      status,
		RequestID: middleware.GetRequestID(r),
	}
	s.respondJSON(w, status, response)
}

// respondFailure maps an analysis error to its status code.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			logging.Error(err),
			logging.Path(r.URL.Path),
			logging.String("request_id", middleware.GetRequestID(r)),
		)
	}
	s.respondError(w, r, status, err.Error())
}

func statusForError(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, topology.ErrInvalidTopology),
		errors.Is(err, resilience.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, resilience.ErrAnalysisTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeRequest reads one JSON document into v and validates its tags.
// Unknown fields are rejected.
func decodeRequest(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON: %w", errBadRequest, err)
	}
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

// analyzerFor returns the server analyzer with overrides applied.
func (s *Server) analyzerFor(overrides *ConfigOverrides) (*resilience.Analyzer, error) {
	if overrides == nil {
		return s.analyzer, nil
	}
	return s.analyzer.WithConfig(overrides.apply(s.analyzer.Config()))
}
