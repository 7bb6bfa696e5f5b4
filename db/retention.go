package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// RetentionPolicy defines which ended feed sessions to prune.
type RetentionPolicy struct {
	// KeepLastNDays: sessions that ended more than this many days ago are eligible (0 = disabled)
	KeepLastNDays int
	// KeepLastNSessions: keep only the N most recent sessions (0 = disabled)
	KeepLastNSessions int
	// DryRun: when true, log actions but don't delete rows
	DryRun bool
	// Interval: how often to run the cleanup job
	Interval time.Duration
}

// LoadRetentionPolicy loads retention policy configuration from environment variables.
func LoadRetentionPolicy() RetentionPolicy {
	policy := RetentionPolicy{
		Interval: 6 * time.Hour,
	}

	if s := os.Getenv("RETENTION_KEEP_DAYS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			policy.KeepLastNDays = n
		}
	}
	if s := os.Getenv("RETENTION_KEEP_COUNT"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			policy.KeepLastNSessions = n
		}
	}
	if os.Getenv("RETENTION_DRY_RUN") == "1" {
		policy.DryRun = true
	}
	if s := os.Getenv("RETENTION_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			policy.Interval = d
		}
	}

	return policy
}

// StartRetentionJob runs a background job that periodically deletes old ended
// sessions according to the configured retention policy. Sessions that are
// still running are never touched.
func StartRetentionJob(ctx context.Context, dbc *sql.DB) {
	policy := LoadRetentionPolicy()

	if policy.KeepLastNDays == 0 && policy.KeepLastNSessions == 0 {
		slog.Info("retention job disabled (no policy configured)")
		return
	}

	slog.Info("retention job starting",
		slog.Int("keep_days", policy.KeepLastNDays),
		slog.Int("keep_count", policy.KeepLastNSessions),
		slog.Bool("dry_run", policy.DryRun),
		slog.Duration("interval", policy.Interval))

	// Run immediately on start
	if err := runRetentionCleanup(ctx, dbc, policy); err != nil {
		slog.Warn("retention cleanup failed", slog.Any("err", err))
	}

	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention job stopped")
			return
		case <-ticker.C:
			if err := runRetentionCleanup(ctx, dbc, policy); err != nil {
				slog.Warn("retention cleanup failed", slog.Any("err", err))
			}
		}
	}
}

// runRetentionCleanup performs a single cleanup cycle. A session is retained
// when either policy keeps it: it ended within the keep-days window, or it is
// among the keep-count most recent. Everything else that has ended goes.
func runRetentionCleanup(ctx context.Context, dbc *sql.DB, policy RetentionPolicy) error {
	logger := slog.Default().With(
		slog.String("component", "retention_cleanup"),
		slog.Bool("dry_run", policy.DryRun),
	)

	rows, err := dbc.QueryContext(ctx, `
		SELECT id, video_id, COALESCE(title, ''), started_at
		FROM feed_sessions
		WHERE ended_at IS NOT NULL
		AND ($1 = 0 OR ended_at < NOW() - make_interval(days => $1))
		AND id NOT IN (
			SELECT id FROM feed_sessions WHERE ended_at IS NOT NULL
			ORDER BY started_at DESC LIMIT $2
		)
		ORDER BY started_at ASC
	`, policy.KeepLastNDays, policy.KeepLastNSessions)
	if err != nil {
		return fmt.Errorf("query expired sessions: %w", err)
	}

	type expired struct {
		id, videoID, title string
		startedAt          time.Time
	}
	var eligible []expired
	for rows.Next() {
		var e expired
		if err := rows.Scan(&e.id, &e.videoID, &e.title, &e.startedAt); err != nil {
			logger.Warn("failed to scan session row", slog.Any("err", err))
			continue
		}
		eligible = append(eligible, e)
	}
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", slog.Any("err", err))
	}

	var cleaned, errors int
	for _, e := range eligible {
		if policy.DryRun {
			logger.Info("dry-run: would delete session",
				slog.String("session_id", e.id),
				slog.String("video_id", e.videoID),
				slog.String("title", e.title),
				slog.Time("started_at", e.startedAt))
			cleaned++
			continue
		}
		if _, err := dbc.ExecContext(ctx, `DELETE FROM feed_sessions WHERE id=$1 AND ended_at IS NOT NULL`, e.id); err != nil {
			logger.Warn("failed to delete session", slog.String("session_id", e.id), slog.Any("err", err))
			errors++
			continue
		}
		logger.Info("deleted old session",
			slog.String("session_id", e.id),
			slog.String("video_id", e.videoID),
			slog.String("title", e.title),
			slog.Time("started_at", e.startedAt))
		cleaned++
	}

	mode := "cleanup"
	if policy.DryRun {
		mode = "dry-run"
	}
	logger.Info("retention cleanup completed",
		slog.String("mode", mode),
		slog.Int("cleaned", cleaned),
		slog.Int("errors", errors))

	_, _ = dbc.ExecContext(ctx, `INSERT INTO kv(key, value, updated_at) VALUES('retention_last_run', $1, NOW())
		ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
		time.Now().UTC().Format(time.RFC3339))

	return nil
}
