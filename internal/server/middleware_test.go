package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/physcio/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// TestAPIKeyAuth verifies missing keys get 401 and wrong keys get 403.
func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusForbidden},
		{"valid", "secret", http.StatusOK},
	}
	h := APIKeyAuth("secret")(okHandler)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

// TestCORSPreflight verifies OPTIONS requests are answered without reaching
// the handler.
func TestCORSPreflight(t *testing.T) {
	var reached bool
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/journals", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if reached {
		t.Error("preflight reached the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
		t.Errorf("allow methods = %q, want DELETE included", got)
	}
}

// TestMetricsMiddleware verifies requests are counted by method and status.
func TestMetricsMiddleware(t *testing.T) {
	m := metrics.NewTestManager()
	h := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := testutil.ToFloat64(m.CounterRequests.WithLabelValues("GET", "418")); got != 2 {
		t.Errorf("request{GET,418} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.GaugeRequests); got != 0 {
		t.Errorf("current_requests = %v, want 0", got)
	}
}

// fakeLimiter allows the first n calls per key.
type fakeLimiter struct {
	n     int
	calls map[string]int
	err   error
}

func (f *fakeLimiter) Allow(_ context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls[key]++
	if f.calls[key] > f.n {
		return &redis_rate.Result{Limit: limit, Allowed: 0, RetryAfter: 1500 * time.Millisecond}, nil
	}
	return &redis_rate.Result{Limit: limit, Allowed: 1, Remaining: f.n - f.calls[key]}, nil
}

// TestRateLimit verifies the limit is applied per user and reports Retry-After.
func TestRateLimit(t *testing.T) {
	m := metrics.NewTestManager()
	limiter := &fakeLimiter{n: 2, calls: map[string]int{}}

	r := chi.NewRouter()
	r.With(RateLimit(limiter, "ai", 2, m, discardLog)).Post("/users/{id}/ai/chat", okHandler)

	do := func(id string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/"+id+"/ai/chat", nil))
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("u1"); rec.Code != http.StatusOK {
			t.Fatalf("call %d status = %d, want 200", i+1, rec.Code)
		}
	}
	rec := do("u1")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("third call status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	if rec := do("u2"); rec.Code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", rec.Code)
	}
	if got := testutil.ToFloat64(m.CounterRateLimited); got != 1 {
		t.Errorf("rate_limited = %v, want 1", got)
	}
	if limiter.calls["ai:u1"] != 3 {
		t.Errorf("limiter key calls = %v", limiter.calls)
	}

	limiter.err = errors.New("redis down")
	if rec := do("u1"); rec.Code != http.StatusOK {
		t.Errorf("limiter failure status = %d, want 200", rec.Code)
	}
	if got := testutil.ToFloat64(m.CounterLimiterErrors); got != 1 {
		t.Errorf("rate_limiter_errors = %v, want 1", got)
	}
}

// TestRateLimitLogsLimiterFailure verifies a limiter outage is logged with
// the failing key.
func TestRateLimitLogsLimiterFailure(t *testing.T) {
	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, nil))
	limiter := &fakeLimiter{n: 1, calls: map[string]int{}, err: errors.New("redis down")}

	r := chi.NewRouter()
	r.With(RateLimit(limiter, "ai", 1, metrics.NewTestManager(), log)).Post("/users/{id}/ai/plan", okHandler)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/u7/ai/plan", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if out := buf.String(); !strings.Contains(out, "rate limiter unavailable") || !strings.Contains(out, "key=ai:u7") {
		t.Errorf("log = %q", out)
	}
}

// TestRequestLoggingCapturesStatus verifies the logged status is the one the
// handler wrote.
func TestRequestLoggingCapturesStatus(t *testing.T) {
	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, nil))
	h := RequestLogging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/x", nil))

	if !strings.Contains(buf.String(), "status=404") || !strings.Contains(buf.String(), "path=/api/v1/users/x") {
		t.Errorf("log = %q", buf.String())
	}
}

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))
