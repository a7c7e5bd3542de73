package sync

import "time"

const (
	EventUpdateStarted   = "update.started"
	EventUpdateTitle     = "update.title"
	EventUpdateCompleted = "update.completed"
	EventChapterNew      = "chapter.new"
	EventLibraryChange   = "library.change"
)

// UpdateEvent is pushed to connected clients as an update run progresses.
type UpdateEvent struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	TitleID   int64     `json:"title_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	NewCount  int       `json:"new_count,omitempty"`
	Failures  int       `json:"failures,omitempty"`
	Cancelled bool      `json:"cancelled,omitempty"`
	At        time.Time `json:"at"`
}

// ChapterEvent announces one chapter a run just added.
type ChapterEvent struct {
	Type          string    `json:"type"` // "chapter.new"
	TitleID       int64     `json:"title_id"`
	Title         string    `json:"title"`
	ChapterName   string    `json:"chapter_name"`
	ChapterNumber float64   `json:"chapter_number"`
	At            time.Time `json:"at"`
}

// LibraryEvent is pushed when the library itself changes outside a run
// (title added/removed, chapter marked read).
type LibraryEvent struct {
	Type    string    `json:"type"` // "library.change"
	Action  string    `json:"action"`
	TitleID int64     `json:"title_id"`
	At      time.Time `json:"at"`
}
