package web

import (
	"net/http"
	"strconv"
)

// handleListLeads returns stored leads, newest first.
func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	leads, err := s.leads.List(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	total, err := s.leads.Count(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"leads": leads,
		"total": total,
	})
}

// handleTeamRoster returns the ordered list of assignable members.
func (s *Server) handleTeamRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := s.team.Roster(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, roster)
}

// handleListFormations returns the formation dimension ordered by position.
func (s *Server) handleListFormations(w http.ResponseWriter, r *http.Request) {
	formations, err := s.formations.List(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, formations)
}

// handleHealth reports liveness and the number of active import runs.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":        "ok",
		"activeImports": s.imports.ActiveRuns(),
	})
}
