package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminSessionStop cancels the watch session for a video. The session
// goroutine marks the catalog row ended on its way out, so the row is not
// touched here.
func (h *Handlers) HandleAdminSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		VideoID string `json:"video_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.VideoID == "" {
		http.Error(w, "video_id required", http.StatusBadRequest)
		return
	}
	if h.mgr == nil || !h.mgr.Stop(req.VideoID) {
		http.Error(w, "no active session for video", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "stopping",
		"video_id": req.VideoID,
	})
}
