package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/physcio/internal/ai"
	"github.com/claude/physcio/internal/content"
	"github.com/claude/physcio/internal/metrics"
	"github.com/claude/physcio/internal/storage"
	"github.com/claude/physcio/internal/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the components the HTTP API is built on.
type Deps struct {
	Tracker *tracker.Service
	Content *content.Service
	AI      ai.Provider
	// Store serves admin stats and import logs.
	Store storage.Store
	// Limiter throttles AI endpoints per user. Nil disables rate limiting.
	Limiter             RequestRateLimiter
	AIRequestsPerMinute int
	// Metrics defaults to an unexported registry when nil.
	Metrics             *metrics.Manager
	// Registry is exposed at MetricsPath when both are set.
	Registry    *prometheus.Registry
	MetricsPath string
	AdminAPIKey string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	Deps
	log    *slog.Logger
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(deps Deps, log *slog.Logger) *Server {
	if deps.AI == nil {
		deps.AI = ai.Disabled{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewManager("physcio", "server", prometheus.NewRegistry())
	}
	s := &Server{
		Deps:   deps,
		log:    log,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(Metrics(s.Metrics))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)
	if s.Registry != nil && s.MetricsPath != "" {
		s.router.Handle(s.MetricsPath, promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/announcements", s.handleListAnnouncements)
		r.Get("/journals", s.handleListJournals)

		// User-scoped endpoints (no auth; tsnet or the fronting proxy handles access)
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetUser)
			r.Put("/profile", s.handleUpdateProfile)

			r.Get("/program", s.handleGetProgram)
			r.Post("/program", s.handleAcceptPlan)
			r.Post("/program/sessions", s.handleLogSession)
			r.Post("/program/complete", s.handleCompletePlan)
			r.Get("/history", s.handleHistory)

			r.Get("/messages", s.handleMessages)
			r.Post("/messages/{msgID}/read", s.handleMarkRead)

			r.Group(func(r chi.Router) {
				if s.Limiter != nil {
					r.Use(RateLimit(s.Limiter, "ai", s.AIRequestsPerMinute, s.Metrics, s.log))
				}
				r.Post("/ai/plan", s.handleGeneratePlan)
				r.Post("/ai/posture", s.handleAnalyzePosture)
				r.Post("/ai/chat", s.handleChat)
			})
		})

		// Admin endpoints (API key required)
		r.Route("/admin", func(r chi.Router) {
			r.Use(APIKeyAuth(s.AdminAPIKey))

			r.Get("/users", s.handleListUsers)
			r.Post("/users", s.handleCreateUser)
			r.Post("/users/{id}/premium", s.handleSetPremium)
			r.Post("/users/{id}/messages", s.handleSendMessage)

			r.Get("/stats", s.handleStats)
			r.Get("/import-logs", s.handleImportLogs)
			r.Post("/import", s.handleImport)

			r.Post("/announcements", s.handleCreateAnnouncement)
			r.Put("/announcements/{annID}", s.handleUpdateAnnouncement)
			r.Delete("/announcements/{annID}", s.handleDeleteAnnouncement)

			r.Post("/journals", s.handleCreateJournal)
			r.Put("/journals/{journalID}", s.handleUpdateJournal)
			r.Delete("/journals/{journalID}", s.handleDeleteJournal)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
