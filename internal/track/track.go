package track

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mangawatch/pkg/models"
)

// Client refreshes tracking records against a tracker proxy speaking a
// small JSON protocol:
//
//	GET {BaseURL}/{service}/entries/{remote_id}
//	{
//	  "last_chapter_read": 42,
//	  "total_chapters": 120,
//	  "score": 8.5
//	}
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Refresh(ctx context.Context, rec models.TrackRecord) (models.TrackRecord, error) {
	url := fmt.Sprintf("%s/%s/entries/%s", c.BaseURL, rec.Service, rec.RemoteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return rec, fmt.Errorf("track: build request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return rec, fmt.Errorf("track: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return rec, fmt.Errorf("track: status %d: %s", resp.StatusCode, string(body))
	}

	var raw struct {
		LastChapterRead float64 `json:"last_chapter_read"`
		TotalChapters   int     `json:"total_chapters"`
		Score           float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return rec, fmt.Errorf("track: decode: %w", err)
	}

	rec.LastChapterRead = raw.LastChapterRead
	rec.TotalChapters = raw.TotalChapters
	rec.Score = raw.Score
	rec.SyncedAt = time.Now().UTC()
	return rec, nil
}
