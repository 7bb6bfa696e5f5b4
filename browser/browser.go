// Package browser drives a controlled Chrome tab to a stream's pop-out chat
// page and surfaces the network responses it observes.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/onnwee/chat-tender/capture"
	"github.com/onnwee/chat-tender/telemetry"
)

// DefaultPageBase is the pop-out live chat page. The page polls its chat
// endpoint on its own; nothing on it needs to be clicked.
const DefaultPageBase = "https://www.youtube.com/live_chat"

// Session owns one Chrome tab pointed at a video's pop-out chat page and
// forwards every response event to the correlator.
type Session struct {
	VideoID    string
	Correlator *capture.Correlator
	Headless   bool
	// PageBase overrides the pop-out page location; empty means DefaultPageBase.
	PageBase string
}

func (s *Session) pageURL() string {
	base := s.PageBase
	if base == "" {
		base = DefaultPageBase
	}
	return base + "?v=" + url.QueryEscape(s.VideoID)
}

// Run opens the chat page and relays response events until ctx is cancelled
// or the browser dies. ListenTarget callbacks must never block, which is why
// the correlator takes over on its own goroutine immediately.
func (s *Session) Run(ctx context.Context) error {
	logger := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "browser"),
		slog.String("video_id", s.VideoID),
	)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.Headless),
		chromedp.Flag("mute-audio", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		slog.Debug(fmt.Sprintf(format, args...), slog.String("component", "browser"))
	}))
	defer browserCancel()

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok {
			return
		}
		rid := resp.RequestID
		fetch := func(fctx context.Context) ([]byte, error) {
			// GetResponseBody must run against this target's executor.
			return network.GetResponseBody(rid).Do(cdp.WithExecutor(fctx, chromedp.FromContext(browserCtx).Target))
		}
		s.Correlator.OnResponse(browserCtx, capture.Event{
			RequestID: string(rid),
			URL:       resp.Response.URL,
		}, fetch)
	})

	logger.Info("opening chat page", slog.String("url", s.pageURL()))
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(s.pageURL()),
	); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("navigate to chat page: %w", err)
	}

	<-browserCtx.Done()
	logger.Info("browser session ended")
	if err := browserCtx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
