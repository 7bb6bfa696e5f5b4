package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/onnwee/chat-tender/capture"
)

// HandleConfig handles GET and PUT requests for safe configuration keys.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	// Only allow GET/PUT for known keys; secrets must not be exposed here.
	safeKeys := map[string]bool{
		"LOG_LEVEL":                 true,
		"LOG_FORMAT":                true,
		"CHAT_ENDPOINT_PREFIX":      true,
		"CHAT_PAGE_BASE":            true,
		"CHAT_FETCH_ATTEMPTS":       true,
		"CHAT_FETCH_INTERVAL":       true,
		"CHAT_RATE_WINDOW":          true,
		"CHAT_DEFAULT_PERIOD":       true,
		"MAX_CONCURRENT_RETRIEVALS": true,
		"EVENTS_KEEPALIVE_INTERVAL": true,
		"METADATA_REFRESH_INTERVAL": true,
		"BROWSER_RESTART_DELAY":     true,
		"RETENTION_KEEP_DAYS":       true,
		"RETENTION_KEEP_COUNT":      true,
		"RETENTION_DRY_RUN":         true,
		"RETENTION_INTERVAL":        true,
	}
	switch r.Method {
	case http.MethodGet:
		// Return safe keys with values from env override (kv) if present
		out := map[string]string{}
		for k := range safeKeys {
			var v string
			_ = h.db.QueryRowContext(r.Context(), `SELECT value FROM kv WHERE key=$1`, "cfg:"+k).Scan(&v)
			if v == "" {
				v = os.Getenv(k)
			}
			if v != "" {
				out[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodPut:
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", 400)
			return
		}
		for k, v := range body {
			if !safeKeys[k] {
				continue
			}
			if _, err := h.db.ExecContext(
				r.Context(),
				`INSERT INTO kv (key,value,updated_at) VALUES ($1,$2,NOW()) ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
				"cfg:"+k,
				strings.TrimSpace(v),
			); err != nil {
				slog.Error("failed to update config", slog.String("key", k), slog.Any("err", err))
				http.Error(w, "failed to update config", http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleStatus returns a lightweight status summary: session counts, the
// running sessions, overlay clients and the retrieval/pacing configuration.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	resp := map[string]any{}

	// Catalog counts
	var total, active, ended int
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feed_sessions`).Scan(&total)
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feed_sessions WHERE ended_at IS NULL`).Scan(&active)
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feed_sessions WHERE ended_at IS NOT NULL`).Scan(&ended)
	resp["sessions_total"] = total
	resp["sessions_active"] = active
	resp["sessions_ended"] = ended

	// Live view from the in-process registry
	if h.mgr != nil {
		resp["running"] = h.mgr.Snapshot()
	}
	if h.hub != nil {
		resp["overlay_clients"] = h.hub.Consumers()
	}

	// Body retrieval concurrency stats
	resp["active_retrievals"] = capture.GetActiveRetrievals()
	resp["max_concurrent_retrievals"] = capture.GetMaxConcurrentRetrievals()

	// Retrieval/pacing configuration echo
	retrievalConfig := map[string]any{
		"fetch_attempts": getEnvInt("CHAT_FETCH_ATTEMPTS", 10),
		"fetch_interval": os.Getenv("CHAT_FETCH_INTERVAL"),
		"rate_window":    getEnvInt("CHAT_RATE_WINDOW", 5),
		"default_period": os.Getenv("CHAT_DEFAULT_PERIOD"),
	}
	if retrievalConfig["fetch_interval"] == "" {
		retrievalConfig["fetch_interval"] = "500ms"
	}
	if retrievalConfig["default_period"] == "" {
		retrievalConfig["default_period"] = "5.2s"
	}
	resp["retrieval_config"] = retrievalConfig

	// Job heartbeats
	keys := map[string]string{
		"feed_last_batch":    "last_batch",
		"retention_last_run": "last_retention_run",
	}
	for k, name := range keys {
		var v string
		_ = h.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=$1`, k).Scan(&v)
		if v != "" {
			resp[name] = v
		}
	}

	resp["uptime_seconds"] = int(time.Since(h.startedAt).Seconds())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
