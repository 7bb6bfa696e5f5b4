package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockOEmbedServer mocks the oEmbed metadata endpoint.
type MockOEmbedServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockOEmbedServer creates a mock server. Unregistered paths return 404,
// which is also what the real endpoint does for unknown or unlisted videos.
func NewMockOEmbedServer(t *testing.T) *MockOEmbedServer {
	t.Helper()
	m := &MockOEmbedServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockMetadataResponse serves an oEmbed document at the root path.
func (m *MockOEmbedServer) MockMetadataResponse(title, authorName string) {
	m.Handlers["/"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"title":         title,
			"author_name":   authorName,
			"author_url":    "https://www.youtube.com/@" + authorName,
			"thumbnail_url": "https://i.ytimg.com/vi/x/hqdefault.jpg",
			"provider_name": "YouTube",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}
