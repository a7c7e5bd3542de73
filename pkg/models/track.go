package models

import "time"

// TrackRecord links a title to an external tracking service entry.
type TrackRecord struct {
	ID              int64     `json:"id"`
	TitleID         int64     `json:"title_id"`
	Service         string    `json:"service"`
	RemoteID        string    `json:"remote_id"`
	LastChapterRead float64   `json:"last_chapter_read"`
	TotalChapters   int       `json:"total_chapters,omitempty"`
	Score           float64   `json:"score,omitempty"`
	SyncedAt        time.Time `json:"synced_at"`
}
