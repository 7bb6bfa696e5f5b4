package livechat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/chat-tender/telemetry"
)

// Manager tracks the watch sessions running in this process. Each session is
// keyed by video id; stopping one cancels its context, which winds down the
// browser, correlator and listener behind it.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*managedSession
}

type managedSession struct {
	sessionID string
	listener  *Listener
	cancel    context.CancelFunc
	startedAt time.Time
}

// SessionInfo is a point-in-time view of one running session.
type SessionInfo struct {
	VideoID   string    `json:"video_id"`
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
}

// NewManager returns an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*managedSession)}
}

// Add registers a running session. A second session for the same video id
// cancels and replaces the old one.
func (m *Manager) Add(videoID, sessionID string, l *Listener, cancel context.CancelFunc) {
	m.mu.Lock()
	if old, ok := m.sessions[videoID]; ok {
		old.cancel()
	}
	m.sessions[videoID] = &managedSession{
		sessionID: sessionID,
		listener:  l,
		cancel:    cancel,
		startedAt: time.Now().UTC(),
	}
	n := len(m.sessions)
	m.mu.Unlock()
	telemetry.SetActiveSessions(n)
}

// Remove forgets a session without canceling it. Called by the session
// goroutine itself once it has wound down. The sessionID guard keeps a
// late exit of a replaced session from evicting its replacement.
func (m *Manager) Remove(videoID, sessionID string) {
	m.mu.Lock()
	if s, ok := m.sessions[videoID]; ok && s.sessionID == sessionID {
		delete(m.sessions, videoID)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	telemetry.SetActiveSessions(n)
}

// Stop cancels the session for videoID. Reports whether one was running.
// The entry itself is removed by the session goroutine on exit.
func (m *Manager) Stop(videoID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[videoID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.cancel()
	return true
}

// Count reports the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Snapshot lists the registered sessions, oldest first.
func (m *Manager) Snapshot() []SessionInfo {
	m.mu.Lock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for videoID, s := range m.sessions {
		out = append(out, SessionInfo{VideoID: videoID, SessionID: s.sessionID, StartedAt: s.startedAt})
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
