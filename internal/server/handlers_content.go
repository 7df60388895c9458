package server

import (
	"net/http"

	"github.com/claude/physcio/internal/models"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	list, err := s.Content.Announcements(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListJournals(w http.ResponseWriter, r *http.Request) {
	list, err := s.Content.Journals(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var a models.Announcement
	if !decodeJSON(w, r, &a) {
		return
	}
	out, err := s.Content.PostAnnouncement(r.Context(), a.Title, a.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var a models.Announcement
	if !decodeJSON(w, r, &a) {
		return
	}
	a.ID = chi.URLParam(r, "annID")
	if err := s.Content.EditAnnouncement(r.Context(), a); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	if err := s.Content.RemoveAnnouncement(r.Context(), chi.URLParam(r, "annID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateJournal(w http.ResponseWriter, r *http.Request) {
	var j models.Journal
	if !decodeJSON(w, r, &j) {
		return
	}
	j.ID = ""
	out, err := s.Content.AddJournal(r.Context(), j)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateJournal(w http.ResponseWriter, r *http.Request) {
	var j models.Journal
	if !decodeJSON(w, r, &j) {
		return
	}
	j.ID = chi.URLParam(r, "journalID")
	if err := s.Content.EditJournal(r.Context(), j); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleDeleteJournal(w http.ResponseWriter, r *http.Request) {
	if err := s.Content.RemoveJournal(r.Context(), chi.URLParam(r, "journalID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
