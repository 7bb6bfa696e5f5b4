package livechat

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// PaceBatch delivers the batch to the emitter in order, spread evenly across
// total: each item is followed by a total/len wait, the last one included, so
// one batch occupies roughly the whole budget. An empty batch is a guarded
// no-op. Emit failures are logged and skipped, never aborting the batch; the
// wait still happens so the cadence holds.
//
// Returns the number of items actually delivered, and the context error if
// the wait was interrupted by cancellation.
func PaceBatch(ctx context.Context, batch []Comment, total time.Duration, em Emitter) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	if total < 0 {
		total = 0
	}
	delay := total / time.Duration(len(batch))

	delivered := 0
	for _, c := range batch {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		if err := em.EmitComment(ctx, c); err != nil {
			if errors.Is(err, ErrNoConsumer) {
				slog.Debug("comment dropped, no consumer attached")
			} else {
				slog.Warn("comment emit failed", slog.Any("err", err))
			}
		} else {
			delivered++
		}
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		case <-time.After(delay):
		}
	}
	return delivered, nil
}
