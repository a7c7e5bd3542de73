package chapter

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"mangawatch/pkg/models"
)

// ErrNoChapters means the source returned an empty chapter list. The caller
// must treat this as a per-title failure rather than wiping the persisted
// chapters over a transient empty response.
var ErrNoChapters = errors.New("no chapters found")

// Store is the persistence slice the reconciler writes through. The whole
// batch for one title (deletes, inserts, updates, title row) is one
// transaction; on error nothing of it may be visible.
type Store interface {
	ApplyReconciliation(ctx context.Context, title models.Title, added, removed, changed []models.Chapter) ([]models.Chapter, error)
}

// Downloads is consulted when a reconciled rename should be mirrored onto a
// locally archived chapter.
type Downloads interface {
	HasLocalCopy(title models.Title, chapter models.Chapter) bool
	Rename(title models.Title, old, updated models.Chapter) error
}

// Diff is the reported outcome of one reconciliation. Re-added chapters
// (same recognized number under a new URL) are excluded from both sets.
type Diff struct {
	Added   []models.Chapter
	Removed []models.Chapter
	Title   models.Title
}

// Reconcile diffs a freshly fetched chapter list against the persisted one,
// persists the result atomically, and recomputes the title's update cadence.
// Chapter identity is the URL; renames and renumbering never create
// duplicates. User state (read, bookmarked) survives metadata changes.
func Reconcile(ctx context.Context, store Store, downloads Downloads, title models.Title, existing []models.Chapter, fetched []models.FetchedChapter, now time.Time) (Diff, error) {
	if len(fetched) == 0 {
		return Diff{}, ErrNoChapters
	}

	// The source's own ordering is authoritative: dedupe by URL keeping the
	// first occurrence and number the survivors in source order.
	seen := make(map[string]struct{}, len(fetched))
	incoming := make([]models.Chapter, 0, len(fetched))
	for _, f := range fetched {
		if _, dup := seen[f.URL]; dup {
			continue
		}
		seen[f.URL] = struct{}{}
		incoming = append(incoming, models.Chapter{
			TitleID:       title.ID,
			URL:           f.URL,
			Name:          f.Name,
			Scanlator:     f.Scanlator,
			ChapterNumber: f.ChapterNumber,
			SourceOrder:   len(incoming),
			DateUpload:    f.DateUpload,
		})
	}

	byURL := make(map[string]models.Chapter, len(existing))
	for _, e := range existing {
		byURL[e.URL] = e
	}

	var toAdd, changed []models.Chapter
	for _, c := range incoming {
		prev, ok := byURL[c.URL]
		if !ok {
			c.ChapterNumber = Recognize(title.Name, c.Name, c.ChapterNumber)
			toAdd = append(toAdd, c)
			continue
		}

		num := Recognize(title.Name, c.Name, c.ChapterNumber)
		if prev.Name == c.Name && prev.Scanlator == c.Scanlator &&
			prev.DateUpload == c.DateUpload && prev.ChapterNumber == num &&
			prev.SourceOrder == c.SourceOrder {
			continue
		}

		upd := prev // persisted row is reused: id, read, bookmarked stay
		upd.Name = c.Name
		upd.Scanlator = c.Scanlator
		upd.DateUpload = c.DateUpload
		upd.ChapterNumber = num
		upd.SourceOrder = c.SourceOrder
		changed = append(changed, upd)

		if prev.Name != c.Name && downloads != nil && downloads.HasLocalCopy(title, prev) {
			if err := downloads.Rename(title, prev, upd); err != nil {
				log.Printf("[reconcile] rename archived chapter %q: %v", prev.Name, err)
			}
		}
	}

	var toDelete []models.Chapter
	for _, e := range existing {
		if _, ok := seen[e.URL]; !ok {
			toDelete = append(toDelete, e)
		}
	}

	if len(toAdd) == 0 && len(toDelete) == 0 && len(changed) == 0 {
		// Nothing moved; opportunistically backfill cadence fields only.
		updated := title
		if updated.NextUpdate == 0 && len(existing) >= 2 {
			updated.NextUpdate = estimateNextUpdate(existing)
		}
		if latest := maxDateUpload(existing); latest > updated.LastUpdate {
			updated.LastUpdate = latest
		}
		if updated != title {
			if _, err := store.ApplyReconciliation(ctx, updated, nil, nil, nil); err != nil {
				return Diff{}, err
			}
		}
		return Diff{Title: updated}, nil
	}

	// Numbers of removed chapters, tracked before anything is persisted so
	// a numerically identical re-appearance can be detected.
	deletedNumbers := make(map[float64]bool)
	deletedReadNumbers := make(map[float64]bool)
	for _, d := range toDelete {
		if !d.Recognized() {
			continue
		}
		deletedNumbers[d.ChapterNumber] = true
		if d.Read {
			deletedReadNumbers[d.ChapterNumber] = true
		}
	}

	// The source lists newest first, so walk additions in reverse: the
	// chapter listed first receives the latest dateFetch.
	reAddedURLs := make(map[string]bool)
	reAddedNumbers := make(map[float64]bool)
	counter := now.UnixMilli()
	for i := len(toAdd) - 1; i >= 0; i-- {
		c := &toAdd[i]
		c.DateFetch = counter
		counter++
		if c.Recognized() && deletedNumbers[c.ChapterNumber] {
			if deletedReadNumbers[c.ChapterNumber] {
				c.Read = true
			}
			reAddedURLs[c.URL] = true
			reAddedNumbers[c.ChapterNumber] = true
		}
	}

	updated := recomputeCadence(title, existing, toAdd, toDelete, changed, now)

	persisted, err := store.ApplyReconciliation(ctx, updated, toAdd, toDelete, changed)
	if err != nil {
		return Diff{}, err
	}
	if len(persisted) == len(toAdd) {
		toAdd = persisted
	}

	diff := Diff{Title: updated}
	for _, c := range toAdd {
		if !reAddedURLs[c.URL] {
			diff.Added = append(diff.Added, c)
		}
	}
	for _, c := range toDelete {
		if !(c.Recognized() && reAddedNumbers[c.ChapterNumber]) {
			diff.Removed = append(diff.Removed, c)
		}
	}
	return diff, nil
}

// recomputeCadence rebuilds lastUpdate/nextUpdate from the chapter set as it
// will exist after the batch is persisted.
func recomputeCadence(title models.Title, existing, toAdd, toDelete, changed []models.Chapter, now time.Time) models.Title {
	final := make(map[string]models.Chapter, len(existing)+len(toAdd))
	for _, c := range existing {
		final[c.URL] = c
	}
	for _, c := range toDelete {
		delete(final, c.URL)
	}
	for _, c := range changed {
		final[c.URL] = c
	}
	for _, c := range toAdd {
		final[c.URL] = c
	}

	chapters := make([]models.Chapter, 0, len(final))
	for _, c := range final {
		chapters = append(chapters, c)
	}

	updated := title
	if len(chapters) >= 2 {
		updated.NextUpdate = estimateNextUpdate(chapters)
	}
	updated.LastUpdate = maxDateUpload(chapters)
	if updated.LastUpdate == 0 && len(toAdd) > 0 {
		updated.LastUpdate = now.UnixMilli()
	}
	return updated
}

// estimateNextUpdate projects the next release from the mean gap between
// the four most recently uploaded chapters.
func estimateNextUpdate(chapters []models.Chapter) int64 {
	sorted := make([]models.Chapter, len(chapters))
	copy(sorted, chapters)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DateUpload > sorted[j].DateUpload
	})
	if len(sorted) > 4 {
		sorted = sorted[:4]
	}
	if len(sorted) < 2 {
		return 0
	}

	var sum int64
	for i := 0; i < len(sorted)-1; i++ {
		sum += sorted[i].DateUpload - sorted[i+1].DateUpload
	}
	mean := sum / int64(len(sorted)-1)
	return sorted[0].DateUpload + mean
}

func maxDateUpload(chapters []models.Chapter) int64 {
	var latest int64
	for _, c := range chapters {
		if c.DateUpload > latest {
			latest = c.DateUpload
		}
	}
	return latest
}
