package updater

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"mangawatch/internal/chapter"
	"mangawatch/internal/source"
	synchub "mangawatch/internal/sync"
	"mangawatch/pkg/models"
	"mangawatch/pkg/utils"
)

// Target selects what a run refreshes.
type Target string

const (
	TargetChapters Target = "chapters"
	TargetCovers   Target = "covers"
	TargetTracking Target = "tracking"
)

func ParseTarget(value string) (Target, error) {
	switch Target(strings.ToLower(strings.TrimSpace(value))) {
	case TargetChapters, "":
		return TargetChapters, nil
	case TargetCovers:
		return TargetCovers, nil
	case TargetTracking:
		return TargetTracking, nil
	default:
		return "", fmt.Errorf("unknown update target %q", value)
	}
}

// ErrAlreadyRunning is returned when Run is invoked while another run is
// still processing. Runs are single-flight: the caller is expected to wait,
// not queue.
var ErrAlreadyRunning = errors.New("an update run is already in progress")

// TitleFilter selects the working set of a run.
type TitleFilter struct {
	FavoritesOnly bool
	Category      string   // exactly this category ("" = no restriction)
	Categories    []string // configured allow list, used when Category is ""
	SkipCompleted bool
}

// Repository is the persistence collaborator. ApplyReconciliation must be
// atomic per title; see chapter.Store.
type Repository interface {
	GetTitles(ctx context.Context, filter TitleFilter) ([]models.Title, error)
	GetChapters(ctx context.Context, titleID int64) ([]models.Chapter, error)
	ApplyReconciliation(ctx context.Context, title models.Title, added, removed, changed []models.Chapter) ([]models.Chapter, error)
	UpdateTitleMetadata(ctx context.Context, title models.Title) error
	GetTracks(ctx context.Context, titleID int64) ([]models.TrackRecord, error)
	SaveTrack(ctx context.Context, rec models.TrackRecord) error
}

// SourceResolver maps a title's sourceId to its provider.
type SourceResolver interface {
	Get(id string) (source.Source, bool)
}

// Downloads is the download subsystem as the orchestrator sees it.
type Downloads interface {
	chapter.Downloads
	Enqueue(title models.Title, chapters []models.Chapter) error
	Start()
}

// Covers refreshes a title's cached cover image.
type Covers interface {
	Refresh(ctx context.Context, title models.Title, meta models.RemoteMetadata) error
}

// Tracks refreshes one linked tracking-service record.
type Tracks interface {
	Refresh(ctx context.Context, rec models.TrackRecord) (models.TrackRecord, error)
}

// ErrorSink persists a run's failure list as a downloadable artifact.
type ErrorSink interface {
	WriteReport(failures []models.UpdateFailure) (string, error)
}

// Lease is the long-lived resource held for a whole run (the wake-lock
// equivalent). Acquire fails loudly; the release func must be safe to call
// exactly once on every exit path.
type Lease interface {
	Acquire() (release func(), err error)
}

// Broadcaster pushes progress events to connected clients.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Notifier announces freshly added chapters (UDP push, see internal/notify).
type Notifier interface {
	BroadcastNewChapter(title models.Title, chapter models.Chapter)
}

// Updater refreshes the tracked library against its sources. Collaborators
// other than Repo and Sources are optional and nil-checked.
type Updater struct {
	Repo      Repository
	Sources   SourceResolver
	Downloads Downloads
	Covers    Covers
	Tracks    Tracks
	Errors    ErrorSink
	Hub       Broadcaster
	Notify    Notifier
	Lease     Lease
	Config    utils.UpdaterConfig
	Now       func() time.Time

	mu      sync.Mutex
	running bool
	last    *models.UpdateReport
}

func New(repo Repository, sources SourceResolver, cfg utils.UpdaterConfig) *Updater {
	return &Updater{Repo: repo, Sources: sources, Config: cfg}
}

func (u *Updater) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

// Running reports whether a run is currently processing.
func (u *Updater) Running() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.running
}

// LastReport returns the report of the most recently finished run, or nil.
func (u *Updater) LastReport() *models.UpdateReport {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last
}

// Run refreshes the selected working set one title at a time. Titles are
// processed sequentially on purpose: remote sources are rate-limited and a
// parallel fan-out across titles of the same source would hammer them.
// Cancel the context to stop between titles; the in-flight title finishes
// first and already-processed titles stay in the report.
func (u *Updater) Run(ctx context.Context, target Target, category string) (*models.UpdateReport, error) {
	if _, err := ParseTarget(string(target)); err != nil {
		return nil, err
	}

	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	u.running = true
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		u.running = false
		u.mu.Unlock()
	}()

	release := func() {}
	if u.Lease != nil {
		var err error
		release, err = u.Lease.Acquire()
		if err != nil {
			return nil, fmt.Errorf("acquire run lease: %w", err)
		}
	}
	defer release()

	filter := TitleFilter{
		FavoritesOnly: true,
		Category:      category,
		SkipCompleted: target == TargetChapters && u.Config.SkipCompleted,
	}
	if category == "" {
		filter.Categories = u.Config.Categories
	}

	titles, err := u.Repo.GetTitles(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("select titles: %w", err)
	}

	ParseStrategy(u.Config.Ranker).Sort(titles, u.now())

	report := &models.UpdateReport{
		Target:    string(target),
		StartedAt: u.now(),
	}
	u.broadcast(synchub.UpdateEvent{Type: synchub.EventUpdateStarted, Target: string(target), At: u.now()})
	log.Printf("[updater] %s run started: %d titles", target, len(titles))

	for _, title := range titles {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		var (
			refreshed models.Title
			added     []models.Chapter
			err       error
		)
		switch target {
		case TargetChapters:
			refreshed, added, err = u.updateChapters(ctx, title)
		case TargetCovers:
			err = u.updateCover(ctx, title)
		case TargetTracking:
			err = u.updateTracking(ctx, title)
		}
		report.Processed++

		if err != nil {
			// one broken title must not kill the whole run
			report.Failures = append(report.Failures, models.UpdateFailure{
				Title:   title,
				Message: failureMessage(err),
			})
			log.Printf("[updater] %q failed: %v", title.Name, err)
			continue
		}

		if len(added) > 0 {
			report.NewChapters = append(report.NewChapters, models.TitleUpdate{
				Title:    refreshed,
				Chapters: added,
			})
			u.broadcast(synchub.UpdateEvent{
				Type:     synchub.EventUpdateTitle,
				Target:   string(target),
				TitleID:  refreshed.ID,
				Title:    refreshed.Name,
				NewCount: len(added),
				At:       u.now(),
			})
		}
	}

	report.FinishedAt = u.now()

	if len(report.NewChapters) > 0 {
		for _, tu := range report.NewChapters {
			for _, c := range tu.Chapters {
				if u.Notify != nil {
					u.Notify.BroadcastNewChapter(tu.Title, c)
				}
				u.broadcast(synchub.ChapterEvent{
					Type:          synchub.EventChapterNew,
					TitleID:       tu.Title.ID,
					Title:         tu.Title.Name,
					ChapterName:   c.Name,
					ChapterNumber: c.ChapterNumber,
					At:            u.now(),
				})
			}
		}
		if u.Config.AutoDownload && u.Downloads != nil {
			u.Downloads.Start()
		}
	}

	if len(report.Failures) > 0 && u.Errors != nil {
		path, err := u.Errors.WriteReport(report.Failures)
		if err != nil {
			log.Printf("[updater] write error log: %v", err)
		} else {
			report.ErrorLog = path
		}
	}

	u.broadcast(synchub.UpdateEvent{
		Type:      synchub.EventUpdateCompleted,
		Target:    string(target),
		NewCount:  len(report.NewChapters),
		Failures:  len(report.Failures),
		Cancelled: report.Cancelled,
		At:        u.now(),
	})
	log.Printf("[updater] %s run finished: %d processed, %d with new chapters, %d failures, cancelled=%v",
		target, report.Processed, len(report.NewChapters), len(report.Failures), report.Cancelled)

	u.mu.Lock()
	u.last = report
	u.mu.Unlock()
	return report, nil
}

func (u *Updater) updateChapters(ctx context.Context, title models.Title) (models.Title, []models.Chapter, error) {
	src, ok := u.Sources.Get(title.SourceID)
	if !ok {
		return title, nil, fmt.Errorf("unknown source %q", title.SourceID)
	}

	if u.Config.RefreshMetadata {
		meta, err := src.FetchMetadata(ctx, title)
		if err != nil {
			// metadata is best-effort on chapter runs
			log.Printf("[updater] metadata refresh for %q: %v", title.Name, err)
		} else {
			title = applyMetadata(title, meta)
			if err := u.Repo.UpdateTitleMetadata(ctx, title); err != nil {
				return title, nil, err
			}
		}
	}

	fetched, err := src.FetchChapterList(ctx, title)
	if err != nil {
		return title, nil, err
	}

	existing, err := u.Repo.GetChapters(ctx, title.ID)
	if err != nil {
		return title, nil, err
	}

	var dl chapter.Downloads
	if u.Downloads != nil {
		dl = u.Downloads
	}
	diff, err := chapter.Reconcile(ctx, u.Repo, dl, title, existing, fetched, u.now())
	if err != nil {
		return title, nil, err
	}

	if len(diff.Added) > 0 && u.Config.AutoDownload && u.Downloads != nil {
		if err := u.Downloads.Enqueue(diff.Title, diff.Added); err != nil {
			log.Printf("[updater] enqueue downloads for %q: %v", diff.Title.Name, err)
		}
	}
	return diff.Title, diff.Added, nil
}

func (u *Updater) updateCover(ctx context.Context, title models.Title) error {
	src, ok := u.Sources.Get(title.SourceID)
	if !ok {
		return fmt.Errorf("unknown source %q", title.SourceID)
	}

	meta, err := src.FetchMetadata(ctx, title)
	if err != nil {
		return err
	}

	if u.Covers != nil {
		if err := u.Covers.Refresh(ctx, title, meta); err != nil {
			return err
		}
	}

	return u.Repo.UpdateTitleMetadata(ctx, applyMetadata(title, meta))
}

func (u *Updater) updateTracking(ctx context.Context, title models.Title) error {
	if u.Tracks == nil {
		return nil
	}

	recs, err := u.Repo.GetTracks(ctx, title.ID)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		updated, err := u.Tracks.Refresh(ctx, rec)
		if err != nil {
			return err
		}
		if err := u.Repo.SaveTrack(ctx, updated); err != nil {
			return err
		}
	}
	return nil
}

func (u *Updater) broadcast(ev any) {
	if u.Hub != nil {
		u.Hub.BroadcastJSON(ev)
	}
}

// applyMetadata copies non-empty remote fields onto the title.
func applyMetadata(title models.Title, meta models.RemoteMetadata) models.Title {
	if meta.Title != "" {
		title.Name = meta.Title
	}
	if meta.Author != "" {
		title.Author = meta.Author
	}
	if meta.Description != "" {
		title.Description = meta.Description
	}
	if meta.CoverURL != "" {
		title.CoverURL = meta.CoverURL
	}
	if meta.Status != "" {
		title.Status = meta.Status
	}
	return title
}

func failureMessage(err error) string {
	if errors.Is(err, chapter.ErrNoChapters) {
		return "no chapters were found for this title: it may have been removed from the source"
	}
	return err.Error()
}
