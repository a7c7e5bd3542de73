package chapter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mangawatch/internal/chapter"
	"mangawatch/pkg/models"
)

// memStore keeps the persisted chapter set in memory and records what the
// reconciler asked it to apply.
type memStore struct {
	chapters []models.Chapter
	title    models.Title
	nextID   int64

	applies int
	added   []models.Chapter
	removed []models.Chapter
	changed []models.Chapter
	failErr error
}

func (s *memStore) ApplyReconciliation(_ context.Context, title models.Title, added, removed, changed []models.Chapter) ([]models.Chapter, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	s.applies++
	s.title = title
	s.added = added
	s.removed = removed
	s.changed = changed

	byURL := make(map[string]models.Chapter, len(s.chapters))
	for _, c := range s.chapters {
		byURL[c.URL] = c
	}
	for _, c := range removed {
		delete(byURL, c.URL)
	}
	for _, c := range changed {
		byURL[c.URL] = c
	}
	out := make([]models.Chapter, 0, len(added))
	for _, c := range added {
		s.nextID++
		c.ID = s.nextID
		byURL[c.URL] = c
		out = append(out, c)
	}
	s.chapters = s.chapters[:0]
	for _, c := range byURL {
		s.chapters = append(s.chapters, c)
	}
	return out, nil
}

type fakeDownloads struct {
	localCopies map[string]bool // by chapter URL
	renames     [][2]string     // old name -> new name
}

func (d *fakeDownloads) HasLocalCopy(_ models.Title, c models.Chapter) bool {
	return d.localCopies[c.URL]
}

func (d *fakeDownloads) Rename(_ models.Title, old, updated models.Chapter) error {
	d.renames = append(d.renames, [2]string{old.Name, updated.Name})
	return nil
}

var testNow = time.UnixMilli(1_700_000_000_000)

func TestReconcileEmptyFetchFails(t *testing.T) {
	store := &memStore{}
	_, err := chapter.Reconcile(context.Background(), store, nil, models.Title{ID: 1}, nil, nil, testNow)
	if !errors.Is(err, chapter.ErrNoChapters) {
		t.Fatalf("expected ErrNoChapters, got %v", err)
	}
	if store.applies != 0 {
		t.Fatal("store must not be touched on empty fetch")
	}
}

func TestReconcileAddsNewChapters(t *testing.T) {
	store := &memStore{}
	title := models.Title{ID: 1, Name: "Naruto"}
	fetched := []models.FetchedChapter{
		{URL: "/c3", Name: "Ch. 3", ChapterNumber: -1, DateUpload: 300},
		{URL: "/c2", Name: "Ch. 2", ChapterNumber: -1, DateUpload: 200},
		{URL: "/c1", Name: "Ch. 1", ChapterNumber: -1, DateUpload: 100},
	}

	diff, err := chapter.Reconcile(context.Background(), store, nil, title, nil, fetched, testNow)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(diff.Added) != 3 || len(diff.Removed) != 0 {
		t.Fatalf("expected 3 added, 0 removed; got %d/%d", len(diff.Added), len(diff.Removed))
	}

	for i, want := range []float64{3, 2, 1} {
		if diff.Added[i].ChapterNumber != want {
			t.Errorf("chapter %d: number = %v, want %v", i, diff.Added[i].ChapterNumber, want)
		}
		if diff.Added[i].SourceOrder != i {
			t.Errorf("chapter %d: sourceOrder = %d, want %d", i, diff.Added[i].SourceOrder, i)
		}
	}

	// newest-listed chapter gets the latest dateFetch
	if !(diff.Added[0].DateFetch > diff.Added[1].DateFetch && diff.Added[1].DateFetch > diff.Added[2].DateFetch) {
		t.Fatalf("dateFetch not descending in source order: %d, %d, %d",
			diff.Added[0].DateFetch, diff.Added[1].DateFetch, diff.Added[2].DateFetch)
	}

	if diff.Title.LastUpdate != 300 {
		t.Fatalf("lastUpdate = %d, want 300", diff.Title.LastUpdate)
	}
}

func TestReconcileDeduplicatesByURL(t *testing.T) {
	store := &memStore{}
	fetched := []models.FetchedChapter{
		{URL: "/c1", Name: "Ch. 1", ChapterNumber: 1},
		{URL: "/c1", Name: "Ch. 1 (dup)", ChapterNumber: 1},
		{URL: "/c2", Name: "Ch. 2", ChapterNumber: 2},
	}

	diff, err := chapter.Reconcile(context.Background(), store, nil, models.Title{ID: 1}, nil, fetched, testNow)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(diff.Added) != 2 {
		t.Fatalf("expected 2 added after dedupe, got %d", len(diff.Added))
	}
	if diff.Added[0].Name != "Ch. 1" {
		t.Fatalf("first occurrence must win, got %q", diff.Added[0].Name)
	}
	if diff.Added[1].SourceOrder != 1 {
		t.Fatalf("sourceOrder assigned on deduplicated list, got %d", diff.Added[1].SourceOrder)
	}
}

func TestReconcileIdentityByURL(t *testing.T) {
	existing := []models.Chapter{
		{ID: 10, TitleID: 1, URL: "/c1", Name: "Ch. 1", ChapterNumber: 1, SourceOrder: 0, DateUpload: 100, Read: true, Bookmarked: true},
	}
	store := &memStore{chapters: existing, nextID: 10}
	fetched := []models.FetchedChapter{
		{URL: "/c1", Name: "Chapter 1: Renamed", ChapterNumber: 1, DateUpload: 150},
	}

	diff, err := chapter.Reconcile(context.Background(), store, nil, models.Title{ID: 1}, existing, fetched, testNow)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(diff.Added) != 0 || len(diff.Removed) != 0 {
		t.Fatalf("rename must not produce add/remove, got %d/%d", len(diff.Added), len(diff.Removed))
	}
	if len(store.changed) != 1 {
		t.Fatalf("expected 1 changed chapter, got %d", len(store.changed))
	}

	got := store.changed[0]
	if got.ID != 10 || !got.Read || !got.Bookmarked {
		t.Fatalf("changed chapter must keep id/read/bookmarked: %+v", got)
	}
	if got.Name != "Chapter 1: Renamed" || got.DateUpload != 150 {
		t.Fatalf("changed chapter must carry new metadata: %+v", got)
	}
}

func TestReconcileRenamesArchivedChapter(t *testing.T) {
	existing := []models.Chapter{
		{ID: 10, TitleID: 1, URL: "/c1", Name: "Ch. 1", ChapterNumber: 1, SourceOrder: 0},
	}
	store := &memStore{chapters: existing, nextID: 10}
	downloads := &fakeDownloads{localCopies: map[string]bool{"/c1": true}}
	fetched := []models.FetchedChapter{
		{URL: "/c1", Name: "Ch. 1 v2", ChapterNumber: 1},
	}

	if _, err := chapter.Reconcile(context.Background(), store, downloads, models.Title{ID: 1}, existing, fetched, testNow); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	want := [][2]string{{"Ch. 1", "Ch. 1 v2"}}
	if diff := cmp.Diff(want, downloads.renames); diff != "" {
		t.Fatalf("renames mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileReadStateCarryover(t *testing.T) {
	existing := []models.Chapter{
		{ID: 10, TitleID: 1, URL: "/c1", Name: "Ch. 5", ChapterNumber: 5, Read: true},
	}
	store := &memStore{chapters: existing, nextID: 10}
	fetched := []models.FetchedChapter{
		{URL: "/c1-new", Name: "Ch. 5", ChapterNumber: -1},
	}

	diff, err := chapter.Reconcile(context.Background(), store, nil, models.Title{ID: 1, Name: "X"}, existing, fetched, testNow)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	// the swap nets out: neither set reports the pair
	if len(diff.Added) != 0 || len(diff.Removed) != 0 {
		t.Fatalf("re-added chapter must be excluded from the report, got %d/%d",
			len(diff.Added), len(diff.Removed))
	}

	// but the replacement row is persisted, with read carried over
	if len(store.added) != 1 || len(store.removed) != 1 {
		t.Fatalf("store must still persist the swap, got %d added / %d removed",
			len(store.added), len(store.removed))
	}
	if !store.added[0].Read {
		t.Fatal("re-added chapter must inherit read=true")
	}
	if store.added[0].URL != "/c1-new" || store.removed[0].URL != "/c1" {
		t.Fatalf("unexpected swap: added %q, removed %q", store.added[0].URL, store.removed[0].URL)
	}
}

func TestReconcileCadenceEstimate(t *testing.T) {
	day := int64(24 * time.Hour / time.Millisecond)
	existing := []models.Chapter{
		{ID: 1, TitleID: 1, URL: "/c4", Name: "4", ChapterNumber: 4, SourceOrder: 0, DateUpload: 100 * day},
		{ID: 2, TitleID: 1, URL: "/c3", Name: "3", ChapterNumber: 3, SourceOrder: 1, DateUpload: 90 * day},
		{ID: 3, TitleID: 1, URL: "/c2", Name: "2", ChapterNumber: 2, SourceOrder: 2, DateUpload: 70 * day},
		{ID: 4, TitleID: 1, URL: "/c1", Name: "1", ChapterNumber: 1, SourceOrder: 3, DateUpload: 40 * day},
	}
	store := &memStore{chapters: existing, nextID: 4}
	fetched := make([]models.FetchedChapter, 0, len(existing))
	for _, c := range existing {
		fetched = append(fetched, models.FetchedChapter{
			URL: c.URL, Name: c.Name, ChapterNumber: c.ChapterNumber, DateUpload: c.DateUpload,
		})
	}

	title := models.Title{ID: 1, Name: "X", LastUpdate: 100 * day}
	diff, err := chapter.Reconcile(context.Background(), store, nil, title, existing, fetched, testNow)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	// mean of (10, 20, 30) days = 20 days past the newest upload
	want := 120 * day
	if diff.Title.NextUpdate != want {
		t.Fatalf("nextUpdate = %d, want %d", diff.Title.NextUpdate, want)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	store := &memStore{}
	title := models.Title{ID: 1, Name: "X"}
	fetched := []models.FetchedChapter{
		{URL: "/c2", Name: "Ch. 2", ChapterNumber: -1, DateUpload: 200},
		{URL: "/c1", Name: "Ch. 1", ChapterNumber: -1, DateUpload: 100},
	}

	first, err := chapter.Reconcile(context.Background(), store, nil, title, nil, fetched, testNow)
	if err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	if len(first.Added) != 2 {
		t.Fatalf("first run added %d, want 2", len(first.Added))
	}

	applies := store.applies
	second, err := chapter.Reconcile(context.Background(), store, nil, first.Title, store.chapters, fetched, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if len(second.Added) != 0 || len(second.Removed) != 0 {
		t.Fatalf("second run must be a no-op, got %d added / %d removed",
			len(second.Added), len(second.Removed))
	}
	if store.applies != applies {
		t.Fatal("second run must not persist anything")
	}
	if second.Title != first.Title {
		t.Fatalf("cadence fields drifted: %+v vs %+v", second.Title, first.Title)
	}
}

func TestReconcilePersistenceFailure(t *testing.T) {
	boom := errors.New("disk full")
	store := &memStore{failErr: boom}
	fetched := []models.FetchedChapter{{URL: "/c1", Name: "Ch. 1", ChapterNumber: 1}}

	_, err := chapter.Reconcile(context.Background(), store, nil, models.Title{ID: 1}, nil, fetched, testNow)
	if !errors.Is(err, boom) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}
