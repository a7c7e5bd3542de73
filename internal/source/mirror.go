package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mangawatch/pkg/models"
)

// Mirror reads a self-hosted JSON mirror (see cmd/mirror-server). A title's
// URL is its mirror slug, e.g. "/titles/one-piece".
type Mirror struct {
	BaseURL string
	Client  *http.Client
}

func NewMirror(baseURL string) *Mirror {
	return &Mirror{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *Mirror) ID() string { return "mirror" }

// Expected response format:
//
//	GET {BaseURL}/titles/{slug}
//	{
//	  "name": "One Piece",
//	  "creator": "Oda Eiichiro",
//	  "state": "ongoing",
//	  "summary": "...",
//	  "image_url": "...",
//	  "tags": ["Action"]
//	}
func (s *Mirror) FetchMetadata(ctx context.Context, title models.Title) (models.RemoteMetadata, error) {
	var raw struct {
		Name     string   `json:"name"`
		Creator  string   `json:"creator"`
		State    string   `json:"state"`
		Summary  string   `json:"summary"`
		ImageURL string   `json:"image_url"`
		Tags     []string `json:"tags"`
	}
	if err := s.getJSON(ctx, title.URL, &raw); err != nil {
		return models.RemoteMetadata{}, err
	}

	return models.RemoteMetadata{
		Title:       raw.Name,
		Author:      raw.Creator,
		Description: raw.Summary,
		CoverURL:    raw.ImageURL,
		Status:      normalizeStatusMirror(raw.State),
		Genres:      raw.Tags,
	}, nil
}

// Expected response format:
//
//	GET {BaseURL}/titles/{slug}/chapters
//	[
//	  {
//	    "url": "/titles/one-piece/1100",
//	    "name": "Ch. 1100: Thank You",
//	    "scanlator": "tcb",
//	    "number": "1100",
//	    "uploaded_at": "2026-08-30T12:00:00Z"
//	  },
//	  ...
//	]
func (s *Mirror) FetchChapterList(ctx context.Context, title models.Title) ([]models.FetchedChapter, error) {
	var raw []struct {
		URL        string `json:"url"`
		Name       string `json:"name"`
		Scanlator  string `json:"scanlator"`
		Number     string `json:"number"`
		UploadedAt string `json:"uploaded_at"`
	}
	if err := s.getJSON(ctx, strings.TrimSuffix(title.URL, "/")+"/chapters", &raw); err != nil {
		return nil, err
	}

	result := make([]models.FetchedChapter, 0, len(raw))
	for _, r := range raw {
		if r.URL == "" {
			continue
		}

		number := parseNumberOrUnknown(r.Number)

		var uploaded int64
		if ts, err := time.Parse(time.RFC3339, r.UploadedAt); err == nil {
			uploaded = ts.UnixMilli()
		}

		result = append(result, models.FetchedChapter{
			URL:           r.URL,
			Name:          r.Name,
			Scanlator:     r.Scanlator,
			ChapterNumber: number,
			DateUpload:    uploaded,
		})
	}
	return result, nil
}

func (s *Mirror) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("mirror: build request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("mirror: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mirror: status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mirror: decode json: %w", err)
	}
	return nil
}

func normalizeStatusMirror(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "finished", "end":
		return models.StatusCompleted
	case "ongoing", "publishing", "running":
		return models.StatusOngoing
	case "hiatus":
		return models.StatusHiatus
	default:
		return strings.ToLower(strings.TrimSpace(s))
	}
}

func parseNumberOrUnknown(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.NumberUnknown
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return models.NumberUnknown
	}
	return n
}
