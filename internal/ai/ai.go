// Package ai generates exercise plans, analyzes posture photos and answers
// chat messages through a configurable model provider.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/claude/physcio/internal/metrics"
	"github.com/claude/physcio/internal/models"
)

var (
	// ErrNotConfigured is returned by every call when no provider is set up.
	ErrNotConfigured = errors.New("AI service not configured")
	// ErrBadResponse is returned when the model output cannot be used.
	ErrBadResponse = errors.New("unusable AI response")
	// ErrBadRequest is returned for empty chat histories or images.
	ErrBadRequest = errors.New("invalid AI request")
)

// Provider names accepted in configuration.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderCustom = "custom"
)

// DefaultPlanWeeks is the plan length requested when none is given.
const DefaultPlanWeeks = 4

// PlanRequest carries the profile used to tailor a generated plan.
type PlanRequest struct {
	Age           string `json:"age"`
	Weight        string `json:"weight"`
	Height        string `json:"height"`
	Complaints    string `json:"complaints"`
	ActivityLevel string `json:"activityLevel"`
	Weeks         int    `json:"weeks,omitempty"`
}

// Provider is implemented by each model backend.
type Provider interface {
	GeneratePlan(ctx context.Context, req PlanRequest) (*models.ExercisePlan, error)
	AnalyzePosture(ctx context.Context, image []byte, mimeType string) (*models.PostureAnalysisResult, error)
	Chat(ctx context.Context, history []models.ChatMessage) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

var providerDefaults = map[string]struct{ baseURL, model string }{
	ProviderGemini: {"", "gemini-2.5-flash"},
	ProviderOpenAI: {"https://api.openai.com/v1", "gpt-4o-mini"},
	ProviderGroq:   {"https://api.groq.com/openai/v1", "llama-3.3-70b-versatile"},
}

// New builds the provider named in cfg. An empty provider or API key yields
// a provider that fails every call with ErrNotConfigured.
func New(ctx context.Context, cfg Config, log *slog.Logger) (Provider, error) {
	if cfg.Provider == "" || cfg.APIKey == "" {
		log.Warn("AI provider not configured; AI endpoints will return 503")
		return Disabled{}, nil
	}

	if d, ok := providerDefaults[cfg.Provider]; ok {
		if cfg.BaseURL == "" {
			cfg.BaseURL = d.baseURL
		}
		if cfg.Model == "" {
			cfg.Model = d.model
		}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}

	switch cfg.Provider {
	case ProviderGemini:
		return NewGemini(ctx, cfg, log)
	case ProviderOpenAI, ProviderGroq:
		return NewOpenAI(cfg, log), nil
	case ProviderCustom:
		if cfg.BaseURL == "" || cfg.Model == "" {
			return nil, fmt.Errorf("custom AI provider requires base_url and model")
		}
		return NewOpenAI(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// Disabled is the provider used when AI is not configured.
type Disabled struct{}

func (Disabled) GeneratePlan(context.Context, PlanRequest) (*models.ExercisePlan, error) {
	return nil, ErrNotConfigured
}

func (Disabled) AnalyzePosture(context.Context, []byte, string) (*models.PostureAnalysisResult, error) {
	return nil, ErrNotConfigured
}

func (Disabled) Chat(context.Context, []models.ChatMessage) (string, error) {
	return "", ErrNotConfigured
}

// Instrumented wraps a provider with call counters and latency histograms.
type Instrumented struct {
	Provider
	metrics *metrics.Manager
}

// Instrument returns p with metrics recorded on m.
func Instrument(p Provider, m *metrics.Manager) *Instrumented {
	return &Instrumented{Provider: p, metrics: m}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotConfigured):
		result = "not_configured"
	case err != nil:
		result = "error"
	}
	i.metrics.CounterAICalls.WithLabelValues(op, result).Inc()
	i.metrics.HistAIDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (i *Instrumented) GeneratePlan(ctx context.Context, req PlanRequest) (*models.ExercisePlan, error) {
	start := time.Now()
	plan, err := i.Provider.GeneratePlan(ctx, req)
	i.observe("plan", start, err)
	return plan, err
}

func (i *Instrumented) AnalyzePosture(ctx context.Context, image []byte, mimeType string) (*models.PostureAnalysisResult, error) {
	start := time.Now()
	res, err := i.Provider.AnalyzePosture(ctx, image, mimeType)
	i.observe("posture", start, err)
	return res, err
}

func (i *Instrumented) Chat(ctx context.Context, history []models.ChatMessage) (string, error) {
	start := time.Now()
	reply, err := i.Provider.Chat(ctx, history)
	i.observe("chat", start, err)
	return reply, err
}

func checkChat(history []models.ChatMessage) error {
	if len(history) == 0 {
		return fmt.Errorf("%w: empty chat history", ErrBadRequest)
	}
	last := history[len(history)-1]
	if last.Sender != models.SenderUser || strings.TrimSpace(last.Text) == "" {
		return fmt.Errorf("%w: last chat message must be a non-empty user message", ErrBadRequest)
	}
	return nil
}

func checkImage(image []byte, mimeType string) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: empty image", ErrBadRequest)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return fmt.Errorf("%w: unsupported mime type %q", ErrBadRequest, mimeType)
	}
	return nil
}
