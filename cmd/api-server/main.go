package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mangawatch/internal/auth"
	"mangawatch/internal/cover"
	"mangawatch/internal/download"
	"mangawatch/internal/library"
	"mangawatch/internal/notify"
	"mangawatch/internal/source"
	synchub "mangawatch/internal/sync"
	"mangawatch/internal/track"
	"mangawatch/internal/updater"
	"mangawatch/pkg/database"
	"mangawatch/pkg/utils"
)

func main() {
	dbCfg := database.DefaultConfig()
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	// Start TCP sync first (so you notice binding errors early)
	hub := synchub.NewHub()
	router.GET("/ws", synchub.WSHandler(hub))
	tcpSrv := synchub.NewServer(envOr("MANGAWATCH_SYNC_ADDR", ":7070"), hub)

	// UDP push notifications for new chapters
	notifyRegistry := notify.NewRegistry()
	notifySrv := notify.NewServer(envOr("MANGAWATCH_NOTIFY_ADDR", ":7071"), notifyRegistry, nil)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	// Sources
	sources := source.NewRegistry(
		source.NewMangaDex(),
		source.NewMirror(envOr("MANGAWATCH_MIRROR_URL", "http://localhost:9000")),
	)

	// Auth
	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc)
	authHandler.RegisterRoutes(router.Group("/auth"))

	// Protected routes
	protected := router.Group("/api")
	protected.Use(auth.AuthMiddleware(tokenSvc))

	protected.GET("/me", func(c *gin.Context) {
		claims := auth.MustGetClaims(c)
		c.JSON(http.StatusOK, gin.H{
			"id":       claims.UserID,
			"username": claims.Username,
		})
	})

	// Library (protected)
	repo := library.NewRepo(db)
	libHandler := library.NewHandler(repo, sources, hub)
	libHandler.RegisterRoutes(protected)

	// Update orchestrator (protected)
	updCfg := utils.LoadUpdaterConfig()
	downloads := download.NewGateway(updCfg.DataDir)

	upd := updater.New(repo, sources, updCfg)
	upd.Downloads = downloads
	upd.Covers = cover.NewCache(updCfg.DataDir)
	upd.Errors = updater.NewFileErrorSink(updCfg.DataDir)
	upd.Lease = updater.NewRunLock(updCfg.DataDir)
	upd.Hub = hub
	upd.Notify = notifySrv
	if trackerURL := os.Getenv("MANGAWATCH_TRACKER_URL"); trackerURL != "" {
		upd.Tracks = track.NewClient(trackerURL)
	}

	updHandler := updater.NewHandler(upd, downloads)
	updHandler.RegisterRoutes(protected)

	httpSrv := &http.Server{
		Addr:    envOr("MANGAWATCH_HTTP_ADDR", ":8080"),
		Handler: router,
	}

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	go func() {
		if err := notifySrv.Run(); err != nil {
			log.Printf("udp notify server stopped: %v", err)
		}
	}()

	// Periodic library refresh. A run that overlaps the previous one is
	// rejected by the orchestrator; that is fine for a ticker.
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go func() {
		ticker := time.NewTicker(updCfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-schedulerCtx.Done():
				return
			case <-ticker.C:
				if _, err := upd.Run(schedulerCtx, updater.TargetChapters, ""); err != nil &&
					!errors.Is(err, updater.ErrAlreadyRunning) {
					log.Printf("scheduled update run: %v", err)
				}
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP API server listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down servers")
	stopScheduler()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := tcpSrv.Close(); err != nil {
		log.Printf("tcp shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("servers stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
