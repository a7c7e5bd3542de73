package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mangawatch/internal/cover"
	"mangawatch/internal/download"
	"mangawatch/internal/library"
	"mangawatch/internal/source"
	"mangawatch/internal/track"
	"mangawatch/internal/updater"
	"mangawatch/pkg/database"
	"mangawatch/pkg/utils"
)

// One-shot update run for cron jobs and manual refreshes. The file lock in
// the data dir keeps it from stepping on a run started by the API server.
func main() {
	targetFlag := flag.String("target", "chapters", "what to refresh: chapters, covers or tracking")
	categoryFlag := flag.String("category", "", "restrict the run to one category")
	flag.Parse()

	target, err := updater.ParseTarget(*targetFlag)
	if err != nil {
		log.Fatalf("invalid target: %v", err)
	}

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	cfg := utils.LoadUpdaterConfig()
	sources := source.NewRegistry(
		source.NewMangaDex(),
		source.NewMirror(envOr("MANGAWATCH_MIRROR_URL", "http://localhost:9000")),
	)

	upd := updater.New(library.NewRepo(db), sources, cfg)
	upd.Downloads = download.NewGateway(cfg.DataDir)
	upd.Covers = cover.NewCache(cfg.DataDir)
	upd.Errors = updater.NewFileErrorSink(cfg.DataDir)
	upd.Lease = updater.NewRunLock(cfg.DataDir)
	if trackerURL := os.Getenv("MANGAWATCH_TRACKER_URL"); trackerURL != "" {
		upd.Tracks = track.NewClient(trackerURL)
	}

	// Ctrl-C stops between titles and keeps the partial report.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := upd.Run(ctx, target, *categoryFlag)
	if err != nil {
		log.Fatalf("update run failed: %v", err)
	}

	log.Printf("processed %d titles: %d with new chapters, %d failures, cancelled=%v",
		report.Processed, len(report.NewChapters), len(report.Failures), report.Cancelled)
	for _, tu := range report.NewChapters {
		log.Printf("  %s: %d new", tu.Title.Name, len(tu.Chapters))
	}
	if report.ErrorLog != "" {
		log.Printf("error log written to %s", report.ErrorLog)
	}
	if len(report.Failures) > 0 {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
