// Package youtubeapi fetches public video metadata through the oEmbed
// endpoint, which needs no API key, and keeps session rows current while a
// stream is live.
package youtubeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client calls the oEmbed endpoint. The zero value is usable.
type Client struct {
	// BaseURL overrides the endpoint, for tests.
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://www.youtube.com/oembed"
}

// VideoMetadata is the subset of the oEmbed document the feed keeps.
type VideoMetadata struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// GetVideoMetadata resolves the title and channel for a video id.
func (c *Client) GetVideoMetadata(ctx context.Context, videoID string) (*VideoMetadata, error) {
	if videoID == "" {
		return nil, fmt.Errorf("videoID empty")
	}
	watch := "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
	endpoint := c.baseURL() + "?url=" + url.QueryEscape(watch) + "&format=json"
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oembed status %d", resp.StatusCode)
	}
	var meta VideoMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
