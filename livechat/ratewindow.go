package livechat

import (
	"errors"
	"time"
)

// ErrEmptyWindow is returned by Average on a window that has never been fed.
var ErrEmptyWindow = errors.New("rate window holds no samples")

// RateWindow is a fixed-capacity ring of the most recent inter-fetch
// durations. Populated slots are tracked with an explicit counter, so a
// legitimate zero-duration sample still counts. Not safe for concurrent use;
// the owning listener serializes access.
type RateWindow struct {
	slots []time.Duration
	next  int
	used  int
}

// NewRateWindow returns a window of the given capacity. Capacities below 1
// are treated as 1.
func NewRateWindow(capacity int) *RateWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &RateWindow{slots: make([]time.Duration, capacity)}
}

// Put records one sample, overwriting the oldest once the ring is full.
func (w *RateWindow) Put(sample time.Duration) {
	w.slots[w.next] = sample
	w.next = (w.next + 1) % len(w.slots)
	if w.used < len(w.slots) {
		w.used++
	}
}

// Average returns the mean of the populated slots only. An unfed window has
// no meaningful average and reports ErrEmptyWindow instead of zero.
func (w *RateWindow) Average() (time.Duration, error) {
	if w.used == 0 {
		return 0, ErrEmptyWindow
	}
	var sum time.Duration
	for _, s := range w.slots[:w.used] {
		sum += s
	}
	return sum / time.Duration(w.used), nil
}

// Len reports how many slots are populated.
func (w *RateWindow) Len() int { return w.used }

// Cap reports the ring capacity.
func (w *RateWindow) Cap() int { return len(w.slots) }
