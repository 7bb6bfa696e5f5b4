package youtubeapi

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"time"
)

// StartMetadataRefresher launches a goroutine that periodically re-fetches
// metadata for every session that has not ended. Stream titles change
// mid-broadcast often enough that the row written at session start goes
// stale.
func StartMetadataRefresher(ctx context.Context, db *sql.DB, c *Client, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	// Randomize initial delay to spread load across instances.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval / 2)))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			// Add per-iteration jitter (±20% of interval) for scheduling diversity.
			jitterRange := int64(interval / 5)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			nextSleep := interval + jitter
			if nextSleep < interval/2 {
				nextSleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
			refreshOnce(ctx, db, c)
		}
	}()
}

func refreshOnce(ctx context.Context, db *sql.DB, c *Client) {
	rows, err := db.QueryContext(ctx, `SELECT id, video_id FROM feed_sessions WHERE ended_at IS NULL`)
	if err != nil {
		slog.Warn("active session scan failed", slog.Any("err", err))
		return
	}
	type target struct{ id, videoID string }
	var targets []target
	for rows.Next() {
		var tgt target
		if err := rows.Scan(&tgt.id, &tgt.videoID); err != nil {
			continue
		}
		targets = append(targets, tgt)
	}
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", slog.Any("err", err))
	}
	for _, tgt := range targets {
		fctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		meta, err := c.GetVideoMetadata(fctx, tgt.videoID)
		cancel()
		if err != nil {
			slog.Warn("metadata refresh failed", slog.String("video_id", tgt.videoID), slog.Any("err", err))
			continue
		}
		if _, err := db.ExecContext(ctx, `UPDATE feed_sessions SET title=$1, author=$2, updated_at=NOW() WHERE id=$3`,
			meta.Title, meta.AuthorName, tgt.id); err != nil {
			slog.Warn("metadata persist failed", slog.String("video_id", tgt.videoID), slog.Any("err", err))
		}
	}
}
