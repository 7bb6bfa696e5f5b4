package server

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// HandleEvents attaches an overlay client to the live event stream over
// Server-Sent Events. Each hub event becomes one SSE message with the event
// name set, so the overlay can listen for "comment" and "stats" separately.
// The connection stays open until the client goes away or the server stops.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if h.hub == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}

	events, cancel := h.hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Keepalives hold idle proxies open while the stream is quiet.
	keepalive := 15 * time.Second
	if v := os.Getenv("EVENTS_KEEPALIVE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			keepalive = d
		}
	}
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	if _, err := w.Write([]byte(": connected\n\n")); err != nil {
		return
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.ctx.Done():
			// Server shutdown; let the client reconnect elsewhere.
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if _, err := w.Write([]byte("event: " + ev.Name + "\n")); err != nil {
				slog.Debug("overlay client write failed", slog.Any("err", err))
				return
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(ev.Data); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
