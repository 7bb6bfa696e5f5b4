// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ResponsesMatched    prometheus.Counter
	FetchAttempts       prometheus.Counter
	FetchErrors         prometheus.Counter
	FetchAbandoned      prometheus.Counter
	BodiesReceived      prometheus.Counter
	BatchesParsed       prometheus.Counter
	BatchesUnrecognized prometheus.Counter
	CommentsEmitted     prometheus.Counter
	EventsDropped       prometheus.Counter

	// Histograms
	FetchPeriod   prometheus.Observer
	BatchSize     prometheus.Observer
	ParseDuration prometheus.Observer

	// Gauges
	CommentRateGauge    prometheus.Gauge
	OverlayClientsGauge prometheus.Gauge
	ActiveSessionsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ResponsesMatched = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_responses_matched_total", Help: "Network responses matching the chat endpoint"})
		FetchAttempts = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_fetch_attempts_total", Help: "Body fetch attempts, including retries"})
		FetchErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_fetch_errors_total", Help: "Body fetches that failed outright"})
		FetchAbandoned = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_fetch_abandoned_total", Help: "Responses whose body never became readable"})
		BodiesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_bodies_received_total", Help: "Non-empty chat bodies handed to the parser"})
		BatchesParsed = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_batches_parsed_total", Help: "Bodies recognized as chat continuation documents"})
		BatchesUnrecognized = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_batches_unrecognized_total", Help: "Bodies that were not chat continuation documents"})
		CommentsEmitted = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_comments_emitted_total", Help: "Comments delivered to the overlay"})
		EventsDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_overlay_dropped_total", Help: "Overlay events dropped because a client was too slow"})
		FetchPeriod = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_fetch_period_seconds", Help: "Gap between consecutive chat bodies", Buckets: prometheus.DefBuckets})
		BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_batch_comments", Help: "Comments per parsed batch", Buckets: prometheus.ExponentialBuckets(1, 2, 8)})
		ParseDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_parse_duration_seconds", Help: "Batch parse duration seconds", Buckets: prometheus.DefBuckets})
		CommentRateGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_comments_per_second", Help: "Smoothed comment rate of the current feed"})
		OverlayClientsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_overlay_clients", Help: "Connected overlay clients"})
		ActiveSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_active_sessions", Help: "Watch sessions currently running"})
	})
}

// SetCommentRate records the smoothed comments-per-second estimate.
func SetCommentRate(perSec float64) {
	if CommentRateGauge != nil {
		CommentRateGauge.Set(perSec)
	}
}

// SetOverlayClients records the number of connected overlay clients.
func SetOverlayClients(n int) {
	if OverlayClientsGauge != nil {
		OverlayClientsGauge.Set(float64(n))
	}
}

// SetActiveSessions records the number of running watch sessions.
func SetActiveSessions(n int) {
	if ActiveSessionsGauge != nil {
		ActiveSessionsGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
