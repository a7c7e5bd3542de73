package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mangawatch/pkg/models"
)

// MangaDex API base (public)
const mangadexBase = "https://api.mangadex.org"

// MangaDex fetches title details and chapter feeds from the MangaDex API.
// A title's URL is its API path, e.g. "/manga/<uuid>".
type MangaDex struct {
	BaseURL string
	Client  *http.Client
	Limit   int // chapters per feed request
	Max     int // maximum chapters to fetch total (safety)
}

func NewMangaDex() *MangaDex {
	return &MangaDex{
		BaseURL: mangadexBase,
		Client:  &http.Client{Timeout: 12 * time.Second},
		Limit:   500,
		Max:     2000,
	}
}

func (s *MangaDex) ID() string { return "mangadex" }

type mdMangaResponse struct {
	Result string `json:"result"`
	Data   struct {
		ID         string `json:"id"`
		Attributes struct {
			Title       map[string]string `json:"title"`
			Description map[string]string `json:"description"`
			Status      string            `json:"status"`
			Tags        []struct {
				Attributes struct {
					Name map[string]string `json:"name"`
				} `json:"attributes"`
			} `json:"tags"`
		} `json:"attributes"`
		Relationships []struct {
			ID         string `json:"id"`
			Type       string `json:"type"`
			Attributes struct {
				Name     string `json:"name"`     // author
				FileName string `json:"fileName"` // cover_art
			} `json:"attributes"`
		} `json:"relationships"`
	} `json:"data"`
}

type mdFeedResponse struct {
	Result string `json:"result"`
	Data   []struct {
		ID         string `json:"id"`
		Attributes struct {
			Title     string `json:"title"`
			Chapter   string `json:"chapter"`
			Volume    string `json:"volume"`
			PublishAt string `json:"publishAt"`
		} `json:"attributes"`
		Relationships []struct {
			Type       string `json:"type"`
			Attributes struct {
				Name string `json:"name"` // scanlation_group
			} `json:"attributes"`
		} `json:"relationships"`
	} `json:"data"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

func (s *MangaDex) FetchMetadata(ctx context.Context, title models.Title) (models.RemoteMetadata, error) {
	mangaID, err := mangaIDFromURL(title.URL)
	if err != nil {
		return models.RemoteMetadata{}, err
	}

	u, _ := url.Parse(s.BaseURL + "/manga/" + mangaID)
	q := u.Query()
	q.Add("includes[]", "author")
	q.Add("includes[]", "cover_art")
	u.RawQuery = q.Encode()

	var md mdMangaResponse
	if err := s.getJSON(ctx, u.String(), &md); err != nil {
		return models.RemoteMetadata{}, err
	}

	name := pickLang(md.Data.Attributes.Title, "en")
	if name == "" {
		for _, v := range md.Data.Attributes.Title {
			name = v
			break
		}
	}

	genres := make([]string, 0, len(md.Data.Attributes.Tags))
	for _, t := range md.Data.Attributes.Tags {
		if g := pickLang(t.Attributes.Name, "en"); g != "" {
			genres = append(genres, g)
		}
	}

	author := ""
	coverURL := ""
	for _, rel := range md.Data.Relationships {
		switch rel.Type {
		case "author":
			if author == "" && rel.Attributes.Name != "" {
				author = rel.Attributes.Name
			}
		case "cover_art":
			if coverURL == "" && rel.Attributes.FileName != "" {
				coverURL = fmt.Sprintf("https://uploads.mangadex.org/covers/%s/%s", md.Data.ID, rel.Attributes.FileName)
			}
		}
	}

	return models.RemoteMetadata{
		Title:       name,
		Author:      author,
		Description: pickLang(md.Data.Attributes.Description, "en"),
		CoverURL:    coverURL,
		Status:      normalizeStatusMD(md.Data.Attributes.Status),
		Genres:      genres,
	}, nil
}

func (s *MangaDex) FetchChapterList(ctx context.Context, title models.Title) ([]models.FetchedChapter, error) {
	mangaID, err := mangaIDFromURL(title.URL)
	if err != nil {
		return nil, err
	}

	var all []models.FetchedChapter
	offset := 0

	for len(all) < s.Max {
		u, _ := url.Parse(s.BaseURL + "/manga/" + mangaID + "/feed")
		q := u.Query()
		q.Set("limit", strconv.Itoa(s.Limit))
		q.Set("offset", strconv.Itoa(offset))
		q.Add("translatedLanguage[]", "en")
		q.Set("order[chapter]", "desc")
		q.Add("includes[]", "scanlation_group")
		u.RawQuery = q.Encode()

		var feed mdFeedResponse
		if err := s.getJSON(ctx, u.String(), &feed); err != nil {
			return nil, err
		}
		if len(feed.Data) == 0 {
			break
		}

		for _, item := range feed.Data {
			if item.ID == "" {
				continue
			}

			number := models.NumberUnknown
			if raw := strings.TrimSpace(item.Attributes.Chapter); raw != "" {
				if n, err := strconv.ParseFloat(raw, 64); err == nil {
					number = n
				}
			}

			var uploaded int64
			if ts, err := time.Parse(time.RFC3339, item.Attributes.PublishAt); err == nil {
				uploaded = ts.UnixMilli()
			}

			scanlator := ""
			for _, rel := range item.Relationships {
				if rel.Type == "scanlation_group" && rel.Attributes.Name != "" {
					scanlator = rel.Attributes.Name
					break
				}
			}

			all = append(all, models.FetchedChapter{
				URL:           "/chapter/" + item.ID,
				Name:          chapterDisplayName(item.Attributes.Volume, item.Attributes.Chapter, item.Attributes.Title),
				Scanlator:     scanlator,
				ChapterNumber: number,
				DateUpload:    uploaded,
			})
		}

		offset += s.Limit
		if offset >= feed.Total {
			break
		}
	}

	return all, nil
}

func (s *MangaDex) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("mangadex: build request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("mangadex: request: %w", err)
	}

	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mangadex: status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("mangadex: decode: %w", err)
	}
	return nil
}

func mangaIDFromURL(titleURL string) (string, error) {
	id := strings.TrimPrefix(strings.TrimSpace(titleURL), "/manga/")
	id = strings.Trim(id, "/")
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("mangadex: malformed title url %q", titleURL)
	}
	return id, nil
}

// chapterDisplayName rebuilds the human-readable name, e.g.
// "Vol.2 Ch.15: The Promise".
func chapterDisplayName(volume, chapter, name string) string {
	var b strings.Builder
	if v := strings.TrimSpace(volume); v != "" {
		b.WriteString("Vol." + v + " ")
	}
	if c := strings.TrimSpace(chapter); c != "" {
		b.WriteString("Ch." + c)
	}
	if n := strings.TrimSpace(name); n != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(n)
	}
	if b.Len() == 0 {
		return "Oneshot"
	}
	return b.String()
}

func pickLang(m map[string]string, lang string) string {
	if m == nil {
		return ""
	}
	if v := strings.TrimSpace(m[lang]); v != "" {
		return v
	}
	return ""
}

func normalizeStatusMD(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ongoing":
		return models.StatusOngoing
	case "completed":
		return models.StatusCompleted
	case "hiatus":
		return models.StatusHiatus
	case "cancelled", "canceled":
		return models.StatusCancelled
	default:
		return strings.ToLower(strings.TrimSpace(s))
	}
}
