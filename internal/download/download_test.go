package download_test

import (
	"os"
	"path/filepath"
	"testing"

	"mangawatch/internal/download"
	"mangawatch/pkg/models"
)

func newGateway(t *testing.T) *download.Gateway {
	t.Helper()
	return download.NewGateway(t.TempDir())
}

func TestHasLocalCopyAndRename(t *testing.T) {
	g := newGateway(t)
	title := models.Title{SourceID: "mirror", Name: "One Piece"}
	old := models.Chapter{URL: "/c1", Name: "Ch. 1"}
	updated := models.Chapter{URL: "/c1", Name: "Ch. 1: Romance Dawn"}

	if g.HasLocalCopy(title, old) {
		t.Fatal("no copy expected before archiving")
	}

	// simulate an archived chapter
	dir := filepath.Join(g.Dir, "mirror", "One Piece", "Ch. 1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if !g.HasLocalCopy(title, old) {
		t.Fatal("expected local copy after archiving")
	}

	if err := g.Rename(title, old, updated); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if g.HasLocalCopy(title, old) {
		t.Fatal("old location must be gone after rename")
	}
	if !g.HasLocalCopy(title, updated) {
		t.Fatal("new location must exist after rename")
	}
}

func TestQueueStatus(t *testing.T) {
	g := newGateway(t)
	title := models.Title{SourceID: "mirror", Name: "X"}

	if got := g.Status(); got != download.StatusStopped {
		t.Fatalf("empty queue: status = %s, want stopped", got)
	}

	if err := g.Enqueue(title, []models.Chapter{{URL: "/c1", Name: "Ch. 1"}}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if got := g.Status(); got != download.StatusPaused {
		t.Fatalf("queued but not started: status = %s, want paused", got)
	}
	if g.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", g.Pending())
	}
}

func TestEnqueueDeduplicates(t *testing.T) {
	g := newGateway(t)
	title := models.Title{SourceID: "mirror", Name: "X"}
	chapters := []models.Chapter{{URL: "/c1", Name: "Ch. 1"}}

	if err := g.Enqueue(title, chapters); err != nil {
		t.Fatal(err)
	}
	if err := g.Enqueue(title, chapters); err != nil {
		t.Fatal(err)
	}
	if g.Pending() != 1 {
		t.Fatalf("Pending() = %d after duplicate enqueue, want 1", g.Pending())
	}
}
