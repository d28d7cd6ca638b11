package api

import (
	"net/http"
)

func (s *Server) handleMonitorLast(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		s.respondError(w, r, http.StatusNotFound, "Monitor not configured")
		return
	}
	snap := s.monitor.LastSnapshot()
	if snap == nil {
		s.respondError(w, r, http.StatusNotFound, "No analysis result yet")
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		s.respondError(w, r, http.StatusNotFound, "Monitor not configured")
		return
	}
	s.respondJSON(w, http.StatusOK, s.monitor.Status())
}
