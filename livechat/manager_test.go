package livechat

import (
	"context"
	"testing"
	"time"
)

func TestManagerAddStopRemove(t *testing.T) {
	m := NewManager()
	if m.Count() != 0 {
		t.Fatalf("new manager count=%d want 0", m.Count())
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.Add("vidA", "sess-a", NewListener(nil), cancel)
	if m.Count() != 1 {
		t.Fatalf("count=%d want 1", m.Count())
	}

	if m.Stop("missing") {
		t.Error("stopping an unknown video must report false")
	}
	if !m.Stop("vidA") {
		t.Fatal("stopping a tracked video must report true")
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the session context")
	}

	// The session goroutine forgets itself on exit.
	m.Remove("vidA", "sess-a")
	if m.Count() != 0 {
		t.Errorf("count=%d want 0 after remove", m.Count())
	}
}

func TestManagerSnapshotOrdersOldestFirst(t *testing.T) {
	m := NewManager()
	_, cancelA := context.WithCancel(context.Background())
	_, cancelB := context.WithCancel(context.Background())
	defer cancelA()
	defer cancelB()

	m.Add("vidA", "sess-a", NewListener(nil), cancelA)
	time.Sleep(10 * time.Millisecond)
	m.Add("vidB", "sess-b", NewListener(nil), cancelB)

	snap := m.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot len=%d want 2", len(snap))
	}
	if snap[0].VideoID != "vidA" || snap[1].VideoID != "vidB" {
		t.Errorf("snapshot order %q,%q want vidA,vidB", snap[0].VideoID, snap[1].VideoID)
	}
	if snap[0].SessionID != "sess-a" {
		t.Errorf("sessionID=%q want sess-a", snap[0].SessionID)
	}
	if snap[0].StartedAt.IsZero() {
		t.Error("startedAt must be recorded")
	}
}

func TestManagerReplacesExistingVideo(t *testing.T) {
	m := NewManager()
	ctx1, cancel1 := context.WithCancel(context.Background())
	_, cancel2 := context.WithCancel(context.Background())
	defer cancel2()

	m.Add("vid", "first", NewListener(nil), cancel1)
	m.Add("vid", "second", NewListener(nil), cancel2)

	select {
	case <-ctx1.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("replacing a session must cancel the old one")
	}
	if m.Count() != 1 {
		t.Errorf("count=%d want 1", m.Count())
	}
	snap := m.Snapshot()
	if len(snap) != 1 || snap[0].SessionID != "second" {
		t.Errorf("snapshot=%+v want the replacement session", snap)
	}

	// A late exit of the replaced session must not evict its replacement.
	m.Remove("vid", "first")
	if m.Count() != 1 {
		t.Errorf("count=%d want 1 after stale remove", m.Count())
	}
	m.Remove("vid", "second")
	if m.Count() != 0 {
		t.Errorf("count=%d want 0", m.Count())
	}
}
