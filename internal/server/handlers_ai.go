package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/claude/physcio/internal/ai"
	"github.com/claude/physcio/internal/models"
	"github.com/go-chi/chi/v5"
)

type postureRequest struct {
	// Image is base64 encoded, optionally as a data URL.
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
}

type chatRequest struct {
	History []models.ChatMessage `json:"history"`
}

// handleGeneratePlan returns a generated plan without accepting it. Profile
// fields missing from the request are taken from the stored user.
func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req ai.PlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.Tracker.User(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Age == "" {
		req.Age = u.Age
	}
	if req.Weight == "" {
		req.Weight = u.Weight
	}
	if req.Height == "" {
		req.Height = u.Height
	}

	plan, err := s.AI.GeneratePlan(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleAnalyzePosture(w http.ResponseWriter, r *http.Request) {
	var req postureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := s.Tracker.RequirePremium(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	image, mimeType, err := decodeImage(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.AI.AnalyzePosture(r.Context(), image, mimeType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := s.Tracker.RequirePremium(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}

	reply, err := s.AI.Chat(r.Context(), req.History)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ChatMessage{Sender: models.SenderPhysio, Text: reply})
}

// decodeImage accepts raw base64 or a data:<mime>;base64,<data> URL.
func decodeImage(req postureRequest) ([]byte, string, error) {
	data, mimeType := req.Image, req.MimeType
	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", fmt.Errorf("%w: malformed data URL", ai.ErrBadRequest)
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		data = payload
	}
	image, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: image is not valid base64", ai.ErrBadRequest)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	return image, mimeType, nil
}
