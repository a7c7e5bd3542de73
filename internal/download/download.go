package download

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mangawatch/pkg/models"
)

// Status describes the download queue. There are exactly three states: an
// empty queue is Stopped, a non-empty queue is Paused until Start is called
// and Running while the worker drains it.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusPaused  Status = "paused"
	StatusRunning Status = "running"
)

type queued struct {
	title   models.Title
	chapter models.Chapter
}

// Fetcher retrieves one chapter's content into dir. The default fetcher
// only archives the chapter metadata; a real page fetcher can be plugged in.
type Fetcher func(ctx context.Context, title models.Title, chapter models.Chapter, dir string) error

// Gateway archives chapters under Dir/<source>/<title>/<chapter> and runs
// the download queue.
type Gateway struct {
	Dir   string
	Fetch Fetcher

	mu      sync.Mutex
	queue   []queued
	running bool
}

func NewGateway(dataDir string) *Gateway {
	return &Gateway{
		Dir:   filepath.Join(dataDir, "downloads"),
		Fetch: archiveMetadata,
	}
}

// chapterDir is the archive location for one chapter. The chapter name is
// part of the path, which is why reconciled renames must be mirrored here.
func (g *Gateway) chapterDir(title models.Title, chapter models.Chapter) string {
	return filepath.Join(g.Dir, sanitize(title.SourceID), sanitize(title.Name), sanitize(chapter.Name))
}

func (g *Gateway) HasLocalCopy(title models.Title, chapter models.Chapter) bool {
	info, err := os.Stat(g.chapterDir(title, chapter))
	return err == nil && info.IsDir()
}

// Rename moves an archived chapter to its new name after reconciliation
// renamed the chapter upstream.
func (g *Gateway) Rename(title models.Title, old, updated models.Chapter) error {
	from := g.chapterDir(title, old)
	to := g.chapterDir(title, updated)
	if from == to {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("ensure archive dir: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename archived chapter: %w", err)
	}
	return nil
}

// Enqueue queues chapters that are neither archived nor already pending.
func (g *Gateway) Enqueue(title models.Title, chapters []models.Chapter) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	pending := make(map[string]struct{}, len(g.queue))
	for _, q := range g.queue {
		pending[q.chapter.URL] = struct{}{}
	}
	for _, c := range chapters {
		if _, ok := pending[c.URL]; ok {
			continue
		}
		if g.HasLocalCopy(title, c) {
			continue
		}
		g.queue = append(g.queue, queued{title: title, chapter: c})
	}
	return nil
}

// Start drains the queue in the background. Calling Start while already
// running is a no-op.
func (g *Gateway) Start() {
	g.mu.Lock()
	if g.running || len(g.queue) == 0 {
		g.mu.Unlock()
		return
	}
	g.running = true
	g.mu.Unlock()

	go g.work()
}

// Pause stops the worker after the in-flight chapter; queued chapters stay.
func (g *Gateway) Pause() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case len(g.queue) == 0:
		return StatusStopped
	case g.running:
		return StatusRunning
	default:
		return StatusPaused
	}
}

func (g *Gateway) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

func (g *Gateway) work() {
	for {
		g.mu.Lock()
		if !g.running || len(g.queue) == 0 {
			g.running = false
			g.mu.Unlock()
			return
		}
		next := g.queue[0]
		g.queue = g.queue[1:]
		g.mu.Unlock()

		dir := g.chapterDir(next.title, next.chapter)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("[download] create %s: %v", dir, err)
			continue
		}
		if err := g.Fetch(context.Background(), next.title, next.chapter, dir); err != nil {
			log.Printf("[download] fetch %q / %q: %v", next.title.Name, next.chapter.Name, err)
		}
	}
}

func archiveMetadata(_ context.Context, title models.Title, chapter models.Chapter, dir string) error {
	b, err := json.MarshalIndent(map[string]any{
		"title":          title.Name,
		"chapter":        chapter.Name,
		"chapter_number": chapter.ChapterNumber,
		"scanlator":      chapter.Scanlator,
		"url":            chapter.URL,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "chapter.json"), b, 0o644)
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	return replacer.Replace(s)
}
