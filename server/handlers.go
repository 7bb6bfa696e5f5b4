// Package server exposes the HTTP API: health, status, metrics, session
// listings and the SSE stream the overlay subscribes to. It includes
// permissive CORS for development and injects correlation IDs into request
// contexts for consistent logging.
package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/onnwee/chat-tender/display"
	"github.com/onnwee/chat-tender/livechat"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db        *sql.DB
	ctx       context.Context
	hub       *display.Hub
	mgr       *livechat.Manager
	startedAt time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, db *sql.DB, hub *display.Hub, mgr *livechat.Manager) *Handlers {
	return &Handlers{
		db:        db,
		ctx:       ctx,
		hub:       hub,
		mgr:       mgr,
		startedAt: time.Now().UTC(),
	}
}
