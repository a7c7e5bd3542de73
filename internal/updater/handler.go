package updater

import (
	"context"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"mangawatch/internal/download"
)

// Queue is the download queue surface exposed over HTTP.
type Queue interface {
	Status() download.Status
	Pending() int
	Start()
	Pause()
}

// Handler exposes the orchestrator over HTTP. Runs are started in the
// background; the request returns as soon as the run is accepted.
type Handler struct {
	Updater *Updater
	Queue   Queue

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewHandler(u *Updater, queue Queue) *Handler {
	return &Handler{Updater: u, Queue: queue}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/updates/run", h.run)
	rg.POST("/updates/cancel", h.cancelRun)
	rg.GET("/updates/status", h.status)
	rg.GET("/updates/report", h.report)
	rg.GET("/updates/errorlog", h.errorLog)
	rg.POST("/downloads/start", h.startDownloads)
	rg.POST("/downloads/pause", h.pauseDownloads)
}

type runReq struct {
	Target   string `json:"target"`
	Category string `json:"category"`
}

func (h *Handler) run(c *gin.Context) {
	var req runReq
	// an empty or missing body means "chapters, whole library"
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	target, err := ParseTarget(req.Target)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.Updater.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": ErrAlreadyRunning.Error()})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	category := strings.TrimSpace(req.Category)
	go func() {
		defer cancel()
		if _, err := h.Updater.Run(ctx, target, category); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			log.Printf("[updater] background run: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "update run started",
		"target":   string(target),
		"category": category,
	})
}

func (h *Handler) cancelRun(c *gin.Context) {
	if !h.Updater.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "no update run in progress"})
		return
	}

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Unlock()

	// cancellation lands between titles; the in-flight title finishes first
	c.JSON(http.StatusAccepted, gin.H{"message": "cancellation requested"})
}

func (h *Handler) status(c *gin.Context) {
	resp := gin.H{"running": h.Updater.Running()}
	if h.Queue != nil {
		resp["downloads"] = gin.H{
			"status":  string(h.Queue.Status()),
			"pending": h.Queue.Pending(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) report(c *gin.Context) {
	report := h.Updater.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed run yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// errorLog serves the failure artifact of the last finished run.
func (h *Handler) errorLog(c *gin.Context) {
	report := h.Updater.LastReport()
	if report == nil || report.ErrorLog == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no error log for the last run"})
		return
	}
	c.FileAttachment(report.ErrorLog, filepath.Base(report.ErrorLog))
}

func (h *Handler) startDownloads(c *gin.Context) {
	if h.Queue == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "downloads disabled"})
		return
	}
	h.Queue.Start()
	c.JSON(http.StatusOK, gin.H{"status": string(h.Queue.Status())})
}

func (h *Handler) pauseDownloads(c *gin.Context) {
	if h.Queue == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "downloads disabled"})
		return
	}
	h.Queue.Pause()
	c.JSON(http.StatusOK, gin.H{"status": string(h.Queue.Status())})
}
