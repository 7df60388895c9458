package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds every collector the service exports.
type Manager struct {
	// counters
	CounterRequests       *prometheus.CounterVec
	CounterSessionsLogged *prometheus.CounterVec
	CounterPlansAccepted  prometheus.Counter
	CounterPlansEnded     *prometheus.CounterVec
	CounterAICalls        *prometheus.CounterVec
	CounterRateLimited    prometheus.Counter
	CounterLimiterErrors  prometheus.Counter
	CounterCacheHits      *prometheus.CounterVec

	// gauges
	GaugeRequests prometheus.Gauge

	// histograms
	HistRequestDuration prometheus.Histogram
	HistAIDuration      *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("physcio", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("physcio", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	return &Manager{
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request",
			Help:      "The total number of incoming requests",
		}, []string{"method", "status"}),
		CounterSessionsLogged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_logged",
			Help:      "Session log attempts by outcome",
		}, []string{"outcome"}),
		CounterPlansAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "plans_accepted",
			Help:      "The total number of accepted exercise plans",
		}),
		CounterPlansEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "plans_ended",
			Help:      "Plans moved to history, by status",
		}, []string{"status"}),
		CounterAICalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ai_calls",
			Help:      "AI provider calls by operation and result",
		}, []string{"operation", "result"}),
		CounterRateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_limited",
			Help:      "Requests rejected by the AI rate limiter",
		}),
		CounterLimiterErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_limiter_errors",
			Help:      "Rate limiter failures; the request was let through",
		}),
		CounterCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "content_cache",
			Help:      "Content cache lookups by result",
		}, []string{"result"}),
		GaugeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "current_requests",
			Help:      "Current number of requests served",
		}),
		HistRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Total duration of requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		HistAIDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ai_duration_seconds",
			Help:      "Duration of AI provider calls in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation"}),
	}
}
