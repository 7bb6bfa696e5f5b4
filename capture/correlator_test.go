package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/chat-tender/telemetry"
)

type chanSink struct {
	bodies chan []byte
}

func newChanSink() *chanSink {
	return &chanSink{bodies: make(chan []byte, 16)}
}

func (s *chanSink) OnBody(_ context.Context, raw []byte) {
	s.bodies <- raw
}

const chatPrefix = "https://example.test/live_chat/get_live_chat"

func TestOnResponseIgnoresOtherEndpoints(t *testing.T) {
	telemetry.Init()
	var calls atomic.Int32
	sink := newChanSink()
	c := &Correlator{URLPrefix: chatPrefix, Interval: 5 * time.Millisecond, Sink: sink}

	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("body"), nil
	}
	c.OnResponse(context.Background(), Event{RequestID: "1", URL: "https://example.test/watch?v=abc"}, fetch)
	c.OnResponse(context.Background(), Event{RequestID: "2", URL: "https://other.test/live_chat/get_live_chat"}, fetch)

	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("fetch called %d times for non-matching URLs", n)
	}
	select {
	case b := <-sink.bodies:
		t.Errorf("unexpected body %q", b)
	default:
	}
}

func TestRetrievesOnceBodyAppears(t *testing.T) {
	telemetry.Init()
	var calls atomic.Int32
	sink := newChanSink()
	c := &Correlator{URLPrefix: chatPrefix, Interval: 10 * time.Millisecond, Sink: sink}

	fetch := func(context.Context) ([]byte, error) {
		switch calls.Add(1) {
		case 1, 2:
			return nil, nil
		default:
			return []byte(`{"ok":true}`), nil
		}
	}
	c.OnResponse(context.Background(), Event{RequestID: "7", URL: chatPrefix + "?key=x"}, fetch)

	select {
	case b := <-sink.bodies:
		if string(b) != `{"ok":true}` {
			t.Errorf("body=%q", b)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("body never delivered")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("fetch called %d times, want 3", n)
	}
	// Delivery stops the poll loop.
	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 3 {
		t.Errorf("fetch kept running after delivery, %d calls", n)
	}
}

func TestFetchErrorAbandonsRequest(t *testing.T) {
	telemetry.Init()
	var calls atomic.Int32
	sink := newChanSink()
	c := &Correlator{URLPrefix: chatPrefix, Interval: 5 * time.Millisecond, Sink: sink}

	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return nil, errors.New("no resource with given identifier")
	}
	c.OnResponse(context.Background(), Event{RequestID: "9", URL: chatPrefix}, fetch)

	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch called %d times, want 1 (errors are terminal)", n)
	}
	select {
	case b := <-sink.bodies:
		t.Errorf("unexpected body %q", b)
	default:
	}
}

func TestGivesUpAfterAttemptBudget(t *testing.T) {
	telemetry.Init()
	var calls atomic.Int32
	sink := newChanSink()
	c := &Correlator{URLPrefix: chatPrefix, Attempts: 3, Interval: 5 * time.Millisecond, Sink: sink}

	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("   \n"), nil
	}
	c.OnResponse(context.Background(), Event{RequestID: "4", URL: chatPrefix}, fetch)

	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 3 {
		t.Errorf("fetch called %d times, want exactly 3", n)
	}
	select {
	case b := <-sink.bodies:
		t.Errorf("whitespace body %q must not be delivered", b)
	default:
	}
}

func TestOnResponseReturnsImmediately(t *testing.T) {
	telemetry.Init()
	sink := newChanSink()
	c := &Correlator{URLPrefix: chatPrefix, Interval: 10 * time.Millisecond, Sink: sink}

	fetch := func(ctx context.Context) ([]byte, error) {
		select {
		case <-ctx.Done():
		case <-time.After(500 * time.Millisecond):
		}
		return []byte("slow"), nil
	}
	start := time.Now()
	c.OnResponse(context.Background(), Event{RequestID: "5", URL: chatPrefix}, fetch)
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("OnResponse blocked for %v", d)
	}
	// Drain so the goroutine does not outlive the test binary's patience.
	select {
	case <-sink.bodies:
	case <-time.After(5 * time.Second):
		t.Fatal("slow body never delivered")
	}
}

func TestCancelStopsRetrieval(t *testing.T) {
	telemetry.Init()
	var calls atomic.Int32
	sink := newChanSink()
	c := &Correlator{URLPrefix: chatPrefix, Interval: 20 * time.Millisecond, Sink: sink}

	ctx, cancel := context.WithCancel(context.Background())
	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return nil, nil
	}
	c.OnResponse(ctx, Event{RequestID: "6", URL: chatPrefix}, fetch)
	cancel()

	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("fetch ran %d times after cancel", n)
	}
}

func TestRetrievalSlots(t *testing.T) {
	if GetMaxConcurrentRetrievals() < 1 {
		t.Fatalf("max retrievals=%d", GetMaxConcurrentRetrievals())
	}
	if !acquireRetrievalSlot(context.Background()) {
		t.Fatal("could not acquire a slot")
	}
	if GetActiveRetrievals() < 1 {
		t.Error("active count did not rise")
	}
	releaseRetrievalSlot()
	if GetActiveRetrievals() != 0 {
		t.Errorf("active=%d after release", GetActiveRetrievals())
	}
}
