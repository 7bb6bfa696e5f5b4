package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// sessionRow is the JSON view of one catalog entry.
type sessionRow struct {
	ID          string     `json:"id"`
	VideoID     string     `json:"video_id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Batches     int64      `json:"batches"`
	Comments    int64      `json:"comments"`
	AvgPeriodMs *float64   `json:"avg_period_ms,omitempty"`
	Live        bool       `json:"live"`
}

func (h *Handlers) liveSessionIDs() map[string]bool {
	live := make(map[string]bool)
	if h.mgr == nil {
		return live
	}
	for _, s := range h.mgr.Snapshot() {
		live[s.SessionID] = true
	}
	return live
}

func scanSessionRow(scan func(dest ...any) error) (sessionRow, error) {
	var (
		s      sessionRow
		title  sql.NullString
		author sql.NullString
		ended  sql.NullTime
		avg    sql.NullFloat64
	)
	if err := scan(&s.ID, &s.VideoID, &title, &author, &s.StartedAt, &ended, &s.Batches, &s.Comments, &avg); err != nil {
		return sessionRow{}, err
	}
	s.Title = title.String
	s.Author = author.String
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	if avg.Valid {
		v := avg.Float64
		s.AvgPeriodMs = &v
	}
	return s, nil
}

// HandleSessionsList returns a paginated list of watch sessions, newest first.
func (h *Handlers) HandleSessionsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Basic pagination: ?limit=50&offset=0
	limit := parseIntQuery(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := parseIntQuery(r, "offset", 0)

	query := `
        SELECT id, video_id, title, author, started_at, ended_at,
               COALESCE(batches, 0), COALESCE(comments, 0), avg_period_ms
        FROM feed_sessions
    `
	args := []any{}
	if r.URL.Query().Get("active") == "1" {
		query += ` WHERE ended_at IS NULL`
	}
	query += ` ORDER BY started_at DESC LIMIT $1 OFFSET $2`
	args = append(args, limit, offset)

	rows, err := h.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()

	live := h.liveSessionIDs()
	list := make([]sessionRow, 0)
	for rows.Next() {
		s, err := scanSessionRow(rows.Scan)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.Live = live[s.ID]
		list = append(list, s)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

// HandleSessionsDispatcher routes requests under /sessions/{id}.
func (h *Handlers) HandleSessionsDispatcher(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if path == "" || strings.Contains(path, "/") {
		http.NotFound(w, r)
		return
	}
	h.handleSessionDetail(w, r, path)
}

func (h *Handlers) handleSessionDetail(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	row := h.db.QueryRowContext(r.Context(), `
        SELECT id, video_id, title, author, started_at, ended_at,
               COALESCE(batches, 0), COALESCE(comments, 0), avg_period_ms
        FROM feed_sessions WHERE id=$1
    `, id)
	s, err := scanSessionRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.Live = h.liveSessionIDs()[s.ID]
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s)
}
