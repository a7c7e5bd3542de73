package models

// Chapter number sentinels. A source that cannot number a chapter reports
// NumberUnknown; NumberNonNumeric marks a chapter the source explicitly
// declared as an extra/non-numbered installment.
const (
	NumberUnknown    = -1.0
	NumberNonNumeric = -2.0
)

// Chapter is one installment of a Title. Within a title the URL is the
// identity key: two chapters are the same chapter iff their URLs match.
type Chapter struct {
	ID            int64   `json:"id"`
	TitleID       int64   `json:"title_id"`
	URL           string  `json:"url"`
	Name          string  `json:"name"`
	Scanlator     string  `json:"scanlator,omitempty"`
	ChapterNumber float64 `json:"chapter_number"`
	SourceOrder   int     `json:"source_order"` // position as returned by the source
	DateUpload    int64   `json:"date_upload"`  // epoch millis, source-supplied or zero
	DateFetch     int64   `json:"date_fetch"`   // epoch millis when first persisted locally
	Read          bool    `json:"read"`
	Bookmarked    bool    `json:"bookmarked"`
}

// Recognized reports whether the chapter number was either source-supplied
// or derived from the chapter name.
func (c Chapter) Recognized() bool {
	return c.ChapterNumber == NumberNonNumeric || c.ChapterNumber > NumberUnknown
}

// FetchedChapter is a chapter as returned by a source, before it has a
// local identity. ChapterNumber defaults to NumberUnknown when the source
// did not supply one.
type FetchedChapter struct {
	URL           string  `json:"url"`
	Name          string  `json:"name"`
	Scanlator     string  `json:"scanlator,omitempty"`
	ChapterNumber float64 `json:"chapter_number"`
	DateUpload    int64   `json:"date_upload"`
}
