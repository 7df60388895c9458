package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/claude/physcio/internal/ai"
	"github.com/claude/physcio/internal/content"
	"github.com/claude/physcio/internal/importer"
	"github.com/claude/physcio/internal/program"
	"github.com/claude/physcio/internal/storage"
	"github.com/claude/physcio/internal/tracker"
)

// maxBodyBytes bounds JSON bodies; posture photos arrive base64-encoded.
const maxBodyBytes = 12 << 20

const maxImportBytes = 64 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, program.ErrMalformedPlan),
		errors.Is(err, program.ErrInvalidSessionsPerWeek),
		errors.Is(err, tracker.ErrInvalidProfile),
		errors.Is(err, content.ErrInvalid),
		errors.Is(err, ai.ErrBadRequest),
		errors.Is(err, importer.ErrBadExport):
		return http.StatusBadRequest
	case errors.Is(err, tracker.ErrPremiumRequired):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrEmailTaken),
		errors.Is(err, storage.ErrUserExists),
		errors.Is(err, storage.ErrHistoryRewrite),
		errors.Is(err, program.ErrNoActiveProgram):
		return http.StatusConflict
	case errors.Is(err, ai.ErrBadResponse):
		return http.StatusBadGateway
	case errors.Is(err, ai.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status code. Server errors are logged and their
// details withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = fmt.Sprintf("internal error (%s)", http.StatusText(status))
		if status == http.StatusBadGateway {
			msg = "the AI service returned an unusable response, please try again"
		}
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
