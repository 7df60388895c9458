package server

import (
	"net/http"

	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/program"
	"github.com/go-chi/chi/v5"
)

type acceptPlanRequest struct {
	Plan            *models.ExercisePlan `json:"plan"`
	SessionsPerWeek int                  `json:"sessionsPerWeek"`
}

type logSessionResponse struct {
	Outcome program.Outcome `json:"outcome"`
	User    userResponse    `json:"user"`
}

func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	view, err := s.Tracker.Program(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAcceptPlan(w http.ResponseWriter, r *http.Request) {
	var req acceptPlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.Tracker.AcceptPlan(r.Context(), chi.URLParam(r, "id"), req.Plan, req.SessionsPerWeek)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u))
}

func (s *Server) handleLogSession(w http.ResponseWriter, r *http.Request) {
	u, outcome, err := s.Tracker.LogSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logSessionResponse{Outcome: outcome, User: newUserResponse(u)})
}

func (s *Server) handleCompletePlan(w http.ResponseWriter, r *http.Request) {
	u, err := s.Tracker.CompletePlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.Tracker.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
