package cover

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"mangawatch/pkg/models"
)

// Cache stores one cover image per title under Dir, keyed by title id.
type Cache struct {
	Dir    string
	Client *http.Client
}

func NewCache(dataDir string) *Cache {
	return &Cache{
		Dir:    filepath.Join(dataDir, "covers"),
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Cache) path(title models.Title) string {
	return filepath.Join(c.Dir, fmt.Sprintf("%d.img", title.ID))
}

// Refresh re-downloads the cover when the remote URL changed or the cached
// file is missing. A metadata response without a cover URL is a no-op.
func (c *Cache) Refresh(ctx context.Context, title models.Title, meta models.RemoteMetadata) error {
	if meta.CoverURL == "" {
		return nil
	}
	if meta.CoverURL == title.CoverURL {
		if _, err := os.Stat(c.path(title)); err == nil {
			return nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.CoverURL, nil)
	if err != nil {
		return fmt.Errorf("cover: build request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("cover: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cover: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("cover: ensure cache dir: %w", err)
	}

	tmp := c.path(title) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("cover: create cache file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("cover: write cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cover: close cache file: %w", err)
	}
	return os.Rename(tmp, c.path(title))
}
