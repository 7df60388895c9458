package server

import (
	"net/http"

	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/program"
	"github.com/claude/physcio/internal/tracker"
	"github.com/go-chi/chi/v5"
)

type userResponse struct {
	models.UserRecord
	HasActiveProgram  bool `json:"hasActiveProgram"`
	IsProgramComplete bool `json:"isProgramComplete"`
	UnreadMessages    int  `json:"unreadMessages"`
}

func newUserResponse(u *models.UserRecord) userResponse {
	return userResponse{
		UserRecord:        *u,
		HasActiveProgram:  program.HasActiveProgram(*u),
		IsProgramComplete: program.IsProgramComplete(u.ProgressData),
		UnreadMessages:    len(tracker.UnreadMessages(*u)),
	}
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.Tracker.User(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p tracker.Profile
	if !decodeJSON(w, r, &p) {
		return
	}
	u, err := s.Tracker.UpdateProfile(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.Tracker.Messages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	u, err := s.Tracker.MarkMessageRead(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "msgID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.MessagesFromAdmin)
}
