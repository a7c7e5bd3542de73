package library_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mangawatch/internal/library"
	"mangawatch/internal/updater"
	"mangawatch/pkg/database"
	"mangawatch/pkg/models"
)

func newRepo(t *testing.T) *library.Repo {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return library.NewRepo(db)
}

func addTitle(t *testing.T, repo *library.Repo, title models.Title) models.Title {
	t.Helper()
	saved, err := repo.AddTitle(context.Background(), title)
	if err != nil {
		t.Fatalf("AddTitle: %v", err)
	}
	return saved
}

func TestGetTitlesFilter(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	addTitle(t, repo, models.Title{SourceID: "mirror", URL: "/t1", Name: "A", Favorite: true, Category: "shounen"})
	addTitle(t, repo, models.Title{SourceID: "mirror", URL: "/t2", Name: "B", Favorite: true, Category: "seinen", Status: models.StatusCompleted})
	addTitle(t, repo, models.Title{SourceID: "mirror", URL: "/t3", Name: "C", Favorite: false, Category: "shounen"})

	got, err := repo.GetTitles(ctx, updater.TitleFilter{FavoritesOnly: true})
	if err != nil {
		t.Fatalf("GetTitles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("favorites = %d titles, want 2", len(got))
	}

	got, err = repo.GetTitles(ctx, updater.TitleFilter{FavoritesOnly: true, Category: "shounen"})
	if err != nil {
		t.Fatalf("GetTitles: %v", err)
	}
	if len(got) != 1 || got[0].Name != "A" {
		t.Fatalf("category filter returned %+v, want just A", got)
	}

	got, err = repo.GetTitles(ctx, updater.TitleFilter{FavoritesOnly: true, SkipCompleted: true})
	if err != nil {
		t.Fatalf("GetTitles: %v", err)
	}
	if len(got) != 1 || got[0].Name != "A" {
		t.Fatalf("skip-completed returned %+v, want just A", got)
	}
}

func TestApplyReconciliationRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	title := addTitle(t, repo, models.Title{SourceID: "mirror", URL: "/t1", Name: "A", Favorite: true})

	inserted, err := repo.ApplyReconciliation(ctx, title, []models.Chapter{
		{TitleID: title.ID, URL: "/c1", Name: "Ch. 1", ChapterNumber: 1, SourceOrder: 1, DateUpload: 100, DateFetch: 1},
		{TitleID: title.ID, URL: "/c2", Name: "Ch. 2", ChapterNumber: 2, SourceOrder: 0, DateUpload: 200, DateFetch: 2},
	}, nil, nil)
	if err != nil {
		t.Fatalf("ApplyReconciliation: %v", err)
	}
	if len(inserted) != 2 || inserted[0].ID == 0 || inserted[1].ID == 0 {
		t.Fatalf("inserted chapters must carry assigned ids: %+v", inserted)
	}

	chapters, err := repo.GetChapters(ctx, title.ID)
	if err != nil {
		t.Fatalf("GetChapters: %v", err)
	}
	if len(chapters) != 2 || chapters[0].URL != "/c2" {
		t.Fatalf("chapters must come back in source order, got %+v", chapters)
	}

	// mark read, then run a change + delete batch; read must survive the change
	if ok, err := repo.SetChapterRead(ctx, inserted[0].ID, true); err != nil || !ok {
		t.Fatalf("SetChapterRead: ok=%v err=%v", ok, err)
	}

	changed := inserted[0]
	changed.Name = "Ch. 1: Renamed"
	title.LastUpdate = 200
	if _, err := repo.ApplyReconciliation(ctx, title, nil, []models.Chapter{inserted[1]}, []models.Chapter{changed}); err != nil {
		t.Fatalf("ApplyReconciliation: %v", err)
	}

	chapters, err = repo.GetChapters(ctx, title.ID)
	if err != nil {
		t.Fatalf("GetChapters: %v", err)
	}
	if len(chapters) != 1 {
		t.Fatalf("delete must stick, got %d chapters", len(chapters))
	}
	if chapters[0].Name != "Ch. 1: Renamed" || !chapters[0].Read {
		t.Fatalf("change must keep read state: %+v", chapters[0])
	}

	stored, err := repo.GetTitle(ctx, title.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetTitle: %v", err)
	}
	if stored.LastUpdate != 200 {
		t.Fatalf("title row must be updated in the same batch, lastUpdate = %d", stored.LastUpdate)
	}
}

func TestSaveTrackUpserts(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	title := addTitle(t, repo, models.Title{SourceID: "mirror", URL: "/t1", Name: "A", Favorite: true})

	rec := models.TrackRecord{
		TitleID: title.ID, Service: "anilist", RemoteID: "42",
		LastChapterRead: 10, SyncedAt: time.UnixMilli(1000).UTC(),
	}
	if err := repo.SaveTrack(ctx, rec); err != nil {
		t.Fatalf("SaveTrack: %v", err)
	}

	rec.LastChapterRead = 12
	if err := repo.SaveTrack(ctx, rec); err != nil {
		t.Fatalf("SaveTrack (upsert): %v", err)
	}

	tracks, err := repo.GetTracks(ctx, title.ID)
	if err != nil {
		t.Fatalf("GetTracks: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("upsert must not duplicate, got %d rows", len(tracks))
	}
	if tracks[0].LastChapterRead != 12 {
		t.Fatalf("LastChapterRead = %v, want 12", tracks[0].LastChapterRead)
	}
}
