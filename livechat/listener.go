package livechat

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/chat-tender/telemetry"
)

const (
	// DefaultWindowSize is the rate-window capacity when none is configured.
	DefaultWindowSize = 5
	// DefaultFetchPeriod is the assumed inter-fetch gap before the first one
	// can be measured.
	DefaultFetchPeriod = 5200 * time.Millisecond
)

// Listener owns the per-feed rate state and drives parse, estimate and pace
// for every accepted response body. Configure the exported fields before the
// first OnBody call; after that the listener is safe for concurrent bodies.
type Listener struct {
	// Emitter is the display capability. Required.
	Emitter Emitter
	// DB, when set together with SessionID, receives best-effort catalog
	// updates (batch/comment counters, current average period).
	DB        *sql.DB
	SessionID string
	VideoID   string
	// WindowSize overrides the rate-window capacity; 0 means DefaultWindowSize.
	WindowSize int
	// DefaultPeriod overrides the assumed first gap; 0 means DefaultFetchPeriod.
	DefaultPeriod time.Duration

	// One lock covers timestamp read, timestamp update and window update.
	// Splitting it would let two concurrent bodies measure against the same
	// stale timestamp and double count the gap.
	mu       sync.Mutex
	window   *RateWindow
	lastRead time.Time
}

// NewListener returns a listener emitting through em.
func NewListener(em Emitter) *Listener { return &Listener{Emitter: em} }

// OnBody ingests one non-empty response body: parse it, fold the inter-fetch
// gap into the rate window, report stats, then pace the comments out over the
// smoothed average period. Unrecognized payloads return silently. Blocks for
// up to one average period while pacing, so run it off the event-delivery
// goroutine.
func (l *Listener) OnBody(ctx context.Context, raw []byte) {
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "livechat"), slog.String("video_id", l.VideoID))

	var (
		batch []Comment
		ok    bool
	)
	telemetry.TimeFunc(telemetry.ParseDuration, func() {
		batch, ok = ParseBatch(raw)
	})
	if !ok {
		telemetry.BatchesUnrecognized.Inc()
		logger.Debug("unrecognized payload", slog.Int("bytes", len(raw)))
		return
	}
	telemetry.BatchesParsed.Inc()

	now := time.Now()
	l.mu.Lock()
	if l.window == nil {
		l.window = NewRateWindow(l.windowSize())
	}
	var elapsed time.Duration
	if l.lastRead.IsZero() {
		elapsed = l.defaultPeriod()
	} else {
		elapsed = now.Sub(l.lastRead)
	}
	l.lastRead = now
	l.window.Put(elapsed)
	avg, err := l.window.Average()
	l.mu.Unlock()
	if err != nil {
		// Cannot happen right after a Put; fall back rather than stall the feed.
		logger.Warn("rate window average unavailable", slog.Any("err", err))
		avg = l.defaultPeriod()
	}

	telemetry.FetchPeriod.Observe(elapsed.Seconds())
	telemetry.BatchSize.Observe(float64(len(batch)))

	perSec := 0.0
	if avg > 0 {
		perSec = float64(len(batch)) / avg.Seconds()
	}
	telemetry.SetCommentRate(perSec)
	if err := l.Emitter.EmitStats(ctx, Stats{CommentsPerSec: perSec}); err != nil {
		if errors.Is(err, ErrNoConsumer) {
			logger.Debug("stats dropped, no consumer attached")
		} else {
			logger.Warn("stats emit failed", slog.Any("err", err))
		}
	}

	if l.DB != nil && l.SessionID != "" {
		_, _ = l.DB.ExecContext(ctx, `UPDATE feed_sessions SET batches=batches+1, comments=comments+$1, avg_period_ms=$2, updated_at=NOW() WHERE id=$3`,
			len(batch), float64(avg)/float64(time.Millisecond), l.SessionID)
		_, _ = l.DB.ExecContext(ctx, `INSERT INTO kv (key,value,updated_at) VALUES ($1,$2,NOW()) ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
			"feed_last_batch", now.UTC().Format(time.RFC3339))
	}

	if len(batch) == 0 {
		logger.Debug("batch empty after filtering")
		return
	}
	delivered, perr := PaceBatch(ctx, batch, avg, l.Emitter)
	if delivered > 0 {
		telemetry.CommentsEmitted.Add(float64(delivered))
	}
	if perr != nil {
		logger.Debug("pacing interrupted", slog.Any("err", perr), slog.Int("delivered", delivered))
		return
	}
	logger.Debug("batch emitted", slog.Int("comments", len(batch)), slog.Duration("over", avg))
}

func (l *Listener) windowSize() int {
	if l.WindowSize > 0 {
		return l.WindowSize
	}
	return DefaultWindowSize
}

func (l *Listener) defaultPeriod() time.Duration {
	if l.DefaultPeriod > 0 {
		return l.DefaultPeriod
	}
	return DefaultFetchPeriod
}
