// Package display fans feed events out to the overlay clients connected
// over SSE.
package display

import (
	"encoding/json"
	"sync"

	"github.com/onnwee/chat-tender/livechat"
	"github.com/onnwee/chat-tender/telemetry"
)

// Event is one named payload on its way to the overlay.
type Event struct {
	Name string
	Data []byte
}

// Hub distributes events to every subscribed client. Slow clients lose
// events rather than stalling the feed.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub returns a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a client and returns its event channel plus a cancel
// function. Cancel is idempotent and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	telemetry.SetOverlayClients(n)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			// Close under the lock so Publish can never send on a
			// closed channel.
			close(ch)
			n := len(h.subs)
			h.mu.Unlock()
			telemetry.SetOverlayClients(n)
		})
	}
	return ch, cancel
}

// Publish marshals payload and offers it to every subscriber without
// blocking. With no subscribers it reports livechat.ErrNoConsumer so the
// feed can skip the work of rendering for nobody.
func (h *Hub) Publish(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return livechat.ErrNoConsumer
	}
	ev := Event{Name: name, Data: data}
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			telemetry.EventsDropped.Inc()
		}
	}
	return nil
}

// Consumers reports the number of subscribed clients.
func (h *Hub) Consumers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
