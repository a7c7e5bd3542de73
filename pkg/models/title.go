package models

// Title is a tracked series. One title belongs to exactly one source and
// owns its chapters exclusively.
type Title struct {
	ID          int64  `json:"id"`
	SourceID    string `json:"source_id"`
	URL         string `json:"url"`       // source-scoped locator
	Name        string `json:"title"`     // display name
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	Status      string `json:"status,omitempty"` // "ongoing", "completed", etc.
	Category    string `json:"category,omitempty"`
	Favorite    bool   `json:"favorite"`
	LastUpdate  int64  `json:"last_update"` // epoch millis of newest chapter upload seen
	NextUpdate  int64  `json:"next_update"` // epoch millis estimate of the next release
}

const (
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusHiatus    = "hiatus"
	StatusCancelled = "cancelled"
)

// RemoteMetadata is what a source returns for a title details fetch.
type RemoteMetadata struct {
	Title       string   `json:"title"`
	Author      string   `json:"author,omitempty"`
	Description string   `json:"description,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	Status      string   `json:"status,omitempty"`
	Genres      []string `json:"genres,omitempty"`
}
