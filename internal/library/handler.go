package library

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mangawatch/internal/source"
	synchub "mangawatch/internal/sync"
	"mangawatch/internal/updater"
	"mangawatch/pkg/models"
)

type Handler struct {
	Repo    *Repo
	Sources *source.Registry
	Hub     *synchub.Hub
}

func NewHandler(repo *Repo, sources *source.Registry, hub *synchub.Hub) *Handler {
	return &Handler{Repo: repo, Sources: sources, Hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/library", h.list)
	rg.POST("/library", h.add)
	rg.GET("/library/:id", h.getOne)
	rg.DELETE("/library/:id", h.remove)
	rg.GET("/library/:id/chapters", h.chapters)
	rg.PATCH("/library/:id/chapters/:chapter_id", h.patchChapter)
}

func (h *Handler) list(c *gin.Context) {
	filter := updater.TitleFilter{
		FavoritesOnly: true,
		Category:      strings.TrimSpace(c.Query("category")),
	}

	titles, err := h.Repo.GetTitles(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(titles),
		"items": titles,
	})
}

type addReq struct {
	SourceID string `json:"source_id"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

func (h *Handler) add(c *gin.Context) {
	var req addReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	req.SourceID = strings.TrimSpace(req.SourceID)
	req.URL = strings.TrimSpace(req.URL)
	if req.SourceID == "" || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_id and url required"})
		return
	}

	src, ok := h.Sources.Get(req.SourceID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source", "sources": h.Sources.IDs()})
		return
	}

	title := models.Title{
		SourceID: req.SourceID,
		URL:      req.URL,
		Category: strings.TrimSpace(req.Category),
		Favorite: true,
	}
	meta, err := src.FetchMetadata(c.Request.Context(), title)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "metadata fetch failed: " + err.Error()})
		return
	}
	title.Name = meta.Title
	title.Author = meta.Author
	title.Description = meta.Description
	title.CoverURL = meta.CoverURL
	title.Status = meta.Status

	saved, err := h.Repo.AddTitle(c.Request.Context(), title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	h.broadcast("added", saved.ID)
	c.JSON(http.StatusCreated, saved)
}

func (h *Handler) getOne(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	title, err := h.Repo.GetTitle(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if title == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, title)
}

func (h *Handler) remove(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	deleted, err := h.Repo.DeleteTitle(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.broadcast("removed", id)
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) chapters(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	chapters, err := h.Repo.GetChapters(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(chapters),
		"items": chapters,
	})
}

type patchChapterReq struct {
	Read       *bool `json:"read,omitempty"`
	Bookmarked *bool `json:"bookmarked,omitempty"`
}

func (h *Handler) patchChapter(c *gin.Context) {
	titleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	chapterID, ok := pathID(c, "chapter_id")
	if !ok {
		return
	}

	var req patchChapterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Read == nil && req.Bookmarked == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read or bookmarked required"})
		return
	}

	ctx := c.Request.Context()
	if req.Read != nil {
		found, err := h.Repo.SetChapterRead(ctx, chapterID, *req.Read)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
	}
	if req.Bookmarked != nil {
		found, err := h.Repo.SetChapterBookmarked(ctx, chapterID, *req.Bookmarked)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
	}

	h.broadcast("chapter_updated", titleID)
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

func (h *Handler) broadcast(action string, titleID int64) {
	if h.Hub == nil {
		return
	}
	ev := synchub.LibraryEvent{
		Type:    synchub.EventLibraryChange,
		Action:  action,
		TitleID: titleID,
		At:      time.Now().UTC(),
	}
	go h.Hub.BroadcastJSON(ev)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}
