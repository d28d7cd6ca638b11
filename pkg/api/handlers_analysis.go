package api

import (
	"net/http"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeRequest(r, &req); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	analyzer, err := s.analyzerFor(req.Config)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	result, err := analyzer.Analyze(r.Context(), req.Topology)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSPOFs(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeRequest(r, &req); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	analyzer, err := s.analyzerFor(req.Config)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	spofs, err := analyzer.DetectSPOFs(r.Context(), req.Topology)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, SPOFsResponse{SPOFs: spofs, Count: len(spofs)})
}

func (s *Server) handleOptimizations(w http.ResponseWriter, r *http.Request) {
	var req OptimizationsRequest
	if err := decodeRequest(r, &req); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	analyzer, err := s.analyzerFor(req.Config)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	suggestions, err := analyzer.SuggestOptimizations(r.Context(), req.Result, req.Topology)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, OptimizationsResponse{Optimizations: suggestions, Count: len(suggestions)})
}
