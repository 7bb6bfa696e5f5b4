// Command chat-tender captures a live stream's chat through a controlled
// Chrome session and republishes it to overlay clients at the feed's own
// cadence. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts one watch session per configured video: a browser tab on the
//     pop-out chat page, a response correlator, and a listener that parses,
//     rate-estimates and paces each comment batch.
//   - Exposes an HTTP server with /healthz, /status, /sessions, /events
//     (the overlay SSE stream) and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/onnwee/chat-tender/browser"
	"github.com/onnwee/chat-tender/capture"
	"github.com/onnwee/chat-tender/config"
	"github.com/onnwee/chat-tender/db"
	"github.com/onnwee/chat-tender/display"
	"github.com/onnwee/chat-tender/livechat"
	"github.com/onnwee/chat-tender/server"
	"github.com/onnwee/chat-tender/telemetry"
	"github.com/onnwee/chat-tender/youtubeapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chat-tender", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Run database migrations using dual-system approach:
	// 1. Primary: versioned migrations (golang-migrate) from db/migrations/
	// 2. Fallback: embedded SQL (db.Migrate) for deployments without the
	//    migrations directory next to the binary.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		migrationCtx := context.Background()
		if err := db.Migrate(migrationCtx, database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("embedded SQL migration completed successfully",
			slog.String("component", "db_migrate"))
	} else {
		slog.Info("versioned migrations completed successfully",
			slog.String("component", "db_migrate"))
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The hub fans events out to overlay clients; the relay is the emitter
	// handed to every listener. One hub serves all sessions.
	hub := display.NewHub()
	relay := &display.Relay{Hub: hub}
	mgr := livechat.NewManager()

	// One watch session per configured video
	if err := cfg.ValidateFeedReady(); err != nil {
		slog.Info("no feeds configured; serving API only", slog.Any("err", err))
	} else {
		slog.Info("starting watch sessions", slog.Int("count", len(cfg.VideoIDs)), slog.Any("video_ids", cfg.VideoIDs))
		for _, id := range cfg.VideoIDs {
			videoID := id // capture for goroutine
			go watchSession(ctx, database, cfg, relay, mgr, videoID)
		}
	}

	// Keep catalog titles current while streams run
	metaInterval := 5 * time.Minute
	if v := os.Getenv("METADATA_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			metaInterval = d
		}
	}
	youtubeapi.StartMetadataRefresher(ctx, database, &youtubeapi.Client{}, metaInterval)

	// Prune old ended sessions per retention policy
	go db.StartRetentionJob(ctx, database)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/sessions/events/metrics)
	go func() {
		if err := server.Start(ctx, database, cfg.HTTPAddr, hub, mgr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}

// watchSession runs one feed end to end: the catalog row, metadata lookup,
// correlator, listener, and the browser tab, restarting the tab until the
// session is stopped. One goroutine per configured video.
func watchSession(ctx context.Context, database *sql.DB, cfg *config.Config, em livechat.Emitter, mgr *livechat.Manager, videoID string) {
	sessionID := uuid.New().String()
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sctx = telemetry.WithCorrelation(sctx, sessionID)

	logger := slog.Default().With(
		slog.String("component", "session"),
		slog.String("video_id", videoID),
		slog.String("session_id", sessionID),
	)

	// Catalog row is best-effort; the feed runs even if bookkeeping fails.
	if _, err := database.ExecContext(sctx,
		`INSERT INTO feed_sessions (id, video_id, started_at, created_at) VALUES ($1,$2,NOW(),NOW())`,
		sessionID, videoID); err != nil {
		logger.Warn("session row insert failed", slog.Any("err", err))
	}

	// Resolve title/author off the critical path.
	go func() {
		mctx, mcancel := context.WithTimeout(sctx, 10*time.Second)
		defer mcancel()
		meta, err := (&youtubeapi.Client{}).GetVideoMetadata(mctx, videoID)
		if err != nil {
			logger.Warn("video metadata lookup failed", slog.Any("err", err))
			return
		}
		_, _ = database.ExecContext(sctx,
			`UPDATE feed_sessions SET title=$1, author=$2, updated_at=NOW() WHERE id=$3`,
			meta.Title, meta.AuthorName, sessionID)
		logger.Info("video metadata resolved", slog.String("title", meta.Title), slog.String("author", meta.AuthorName))
	}()

	listener := &livechat.Listener{
		Emitter:       em,
		DB:            database,
		SessionID:     sessionID,
		VideoID:       videoID,
		WindowSize:    cfg.RateWindowSize,
		DefaultPeriod: cfg.DefaultFetchPeriod,
	}
	corr := &capture.Correlator{
		URLPrefix: cfg.ChatEndpointPrefix,
		Attempts:  cfg.FetchAttempts,
		Interval:  cfg.FetchInterval,
		Sink:      listener,
	}
	tab := &browser.Session{
		VideoID:    videoID,
		Correlator: corr,
		Headless:   cfg.BrowserHeadless,
		PageBase:   cfg.ChatPageBase,
	}

	mgr.Add(videoID, sessionID, listener, cancel)
	defer mgr.Remove(videoID, sessionID)

	restartDelay := 10 * time.Second
	if v := os.Getenv("BROWSER_RESTART_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			restartDelay = d
		}
	}

	for {
		err := tab.Run(sctx)
		if sctx.Err() != nil {
			break
		}
		// The pop-out page dies when the stream pauses or Chrome crashes;
		// reopen it until the session is stopped for real.
		if err != nil {
			logger.Warn("browser session failed; restarting", slog.Any("err", err), slog.Duration("delay", restartDelay))
		} else {
			logger.Warn("browser session exited; restarting", slog.Duration("delay", restartDelay))
		}
		select {
		case <-sctx.Done():
		case <-time.After(restartDelay):
			continue
		}
		break
	}

	// sctx is already cancelled here; detach so the final update lands.
	endCtx, endCancel := context.WithTimeout(context.WithoutCancel(sctx), 5*time.Second)
	defer endCancel()
	_, _ = database.ExecContext(endCtx,
		`UPDATE feed_sessions SET ended_at=NOW(), updated_at=NOW() WHERE id=$1`, sessionID)
	logger.Info("watch session ended")
}
