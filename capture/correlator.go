// Package capture matches network responses seen by the browser against the
// live chat endpoint and retrieves their bodies. Bodies are often not yet
// readable when the response event fires, so retrieval polls on a fixed
// interval before giving up.
package capture

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/chat-tender/telemetry"
)

const (
	// DefaultFetchAttempts bounds how many times a body is polled.
	DefaultFetchAttempts = 10
	// DefaultFetchInterval is the pause before each poll.
	DefaultFetchInterval = 500 * time.Millisecond
)

// Event identifies one network response observed in the browser.
type Event struct {
	RequestID string
	URL       string
}

// BodyFetch retrieves the response body for the event it was built for.
// The browser layer binds the request id; the correlator only decides when
// to call it and what to do with the result.
type BodyFetch func(ctx context.Context) ([]byte, error)

// BodySink receives each non-empty body exactly once.
type BodySink interface {
	OnBody(ctx context.Context, raw []byte)
}

// Correlator filters response events down to the chat endpoint and drives
// body retrieval for the ones that match. Zero-value fields fall back to
// the package defaults.
type Correlator struct {
	// URLPrefix selects which responses to retrieve.
	URLPrefix string
	Attempts  int
	Interval  time.Duration
	Sink      BodySink
}

// OnResponse is called from the browser's event loop and must return
// immediately; retrieval runs on its own goroutine.
func (c *Correlator) OnResponse(ctx context.Context, ev Event, fetch BodyFetch) {
	if c.URLPrefix == "" || !strings.HasPrefix(ev.URL, c.URLPrefix) {
		return
	}
	telemetry.ResponsesMatched.Inc()
	go c.retrieve(ctx, ev, fetch)
}

func (c *Correlator) retrieve(ctx context.Context, ev Event, fetch BodyFetch) {
	logger := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "capture"),
		slog.String("request_id", ev.RequestID),
	)
	if !acquireRetrievalSlot(ctx) {
		return
	}
	defer releaseRetrievalSlot()

	attempts := c.Attempts
	if attempts <= 0 {
		attempts = DefaultFetchAttempts
	}
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultFetchInterval
	}

	for i := 0; i < attempts; i++ {
		// The body usually lands shortly after the response event, so
		// wait out the interval before every poll, including the first.
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		telemetry.FetchAttempts.Inc()
		body, err := fetch(ctx)
		if err != nil {
			telemetry.FetchErrors.Inc()
			logger.Warn("body fetch failed", slog.Int("attempt", i+1), slog.Any("err", err))
			return
		}
		if len(bytes.TrimSpace(body)) == 0 {
			continue
		}
		telemetry.BodiesReceived.Inc()
		if c.Sink != nil {
			c.Sink.OnBody(ctx, body)
		}
		return
	}
	telemetry.FetchAbandoned.Inc()
	logger.Warn("body never became readable", slog.Int("attempts", attempts), slog.String("url", ev.URL))
}
