package models

import "time"

// TitleUpdate pairs a title with the chapters a run added for it.
type TitleUpdate struct {
	Title    Title     `json:"title"`
	Chapters []Chapter `json:"chapters"`
}

// UpdateFailure records one title that could not be refreshed.
type UpdateFailure struct {
	Title   Title  `json:"title"`
	Message string `json:"message"`
}

// UpdateReport aggregates the outcome of one update run. A run that was
// cancelled keeps whatever it recorded before the cancellation was honored.
type UpdateReport struct {
	Target      string          `json:"target"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Cancelled   bool            `json:"cancelled"`
	Processed   int             `json:"processed"`
	NewChapters []TitleUpdate   `json:"new_chapters"`
	Failures    []UpdateFailure `json:"failures"`
	ErrorLog    string          `json:"error_log,omitempty"` // artifact path, if written
}
