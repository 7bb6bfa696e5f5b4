package display

import (
	"context"

	"github.com/onnwee/chat-tender/livechat"
)

// SSE event names the overlay listens for.
const (
	EventComment = "comment"
	EventStats   = "stats"
)

// Relay feeds comments and stats into the hub.
type Relay struct {
	Hub *Hub
}

var _ livechat.Emitter = (*Relay)(nil)

func (r *Relay) EmitComment(_ context.Context, c livechat.Comment) error {
	return r.Hub.Publish(EventComment, c)
}

func (r *Relay) EmitStats(_ context.Context, s livechat.Stats) error {
	return r.Hub.Publish(EventStats, s)
}
