package display

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/chat-tender/livechat"
	"github.com/onnwee/chat-tender/telemetry"
)

func TestPublishWithoutConsumers(t *testing.T) {
	h := NewHub()
	err := h.Publish(EventComment, map[string]string{"x": "y"})
	if !errors.Is(err, livechat.ErrNoConsumer) {
		t.Errorf("err=%v want ErrNoConsumer", err)
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	h := NewHub()
	ch1, cancel1 := h.Subscribe()
	defer cancel1()
	ch2, cancel2 := h.Subscribe()
	defer cancel2()

	if h.Consumers() != 2 {
		t.Fatalf("consumers=%d want 2", h.Consumers())
	}
	if err := h.Publish("ping", map[string]int{"n": 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Name != "ping" {
				t.Errorf("subscriber %d: name=%q", i, ev.Name)
			}
			if string(ev.Data) != `{"n":1}` {
				t.Errorf("subscriber %d: data=%s", i, ev.Data)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d never received", i)
		}
	}
}

func TestSlowConsumerDoesNotBlockPublish(t *testing.T) {
	telemetry.Init()
	h := NewHub()
	slow, cancelSlow := h.Subscribe()
	defer cancelSlow()

	// Overfill the client's buffer without ever draining it. Publishes
	// must stay instant; the overflow is dropped, not queued.
	start := time.Now()
	for i := 0; i < 200; i++ {
		if err := h.Publish("burst", i); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if d := time.Since(start); d > time.Second {
		t.Errorf("200 publishes took %v", d)
	}

	got := 0
drain:
	for {
		select {
		case <-slow:
			got++
		default:
			break drain
		}
	}
	if got == 0 || got >= 200 {
		t.Errorf("drained %d events, want some delivered and some dropped", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	cancel()
	cancel() // idempotent

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel, got an event")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	if h.Consumers() != 0 {
		t.Errorf("consumers=%d want 0", h.Consumers())
	}
	if err := h.Publish("after", nil); !errors.Is(err, livechat.ErrNoConsumer) {
		t.Errorf("err=%v want ErrNoConsumer after unsubscribe", err)
	}
}

func TestRelayEventShapes(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()
	r := &Relay{Hub: h}

	comment := livechat.Comment{Elements: []livechat.Element{
		livechat.TextElement("hi "),
		livechat.EmojiElement("https://img.test/e.png"),
	}}
	if err := r.EmitComment(context.Background(), comment); err != nil {
		t.Fatalf("emit comment: %v", err)
	}
	if err := r.EmitStats(context.Background(), livechat.Stats{CommentsPerSec: 2.5}); err != nil {
		t.Fatalf("emit stats: %v", err)
	}

	ev := <-ch
	if ev.Name != EventComment {
		t.Errorf("name=%q want %q", ev.Name, EventComment)
	}
	want := `{"elements":[{"type":"text","content":"hi "},{"type":"emoji","url":"https://img.test/e.png"}]}`
	if string(ev.Data) != want {
		t.Errorf("comment wire=%s\nwant %s", ev.Data, want)
	}

	ev = <-ch
	if ev.Name != EventStats {
		t.Errorf("name=%q want %q", ev.Name, EventStats)
	}
	if string(ev.Data) != `{"commentsPerSec":2.5}` {
		t.Errorf("stats wire=%s", ev.Data)
	}
}
