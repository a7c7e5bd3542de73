package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"mangawatch/internal/updater"
	"mangawatch/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const titleColumns = `id, source_id, url, title, author, description, cover_url, status, category, favorite, last_update, next_update`

func scanTitle(row interface{ Scan(...any) error }) (models.Title, error) {
	var t models.Title
	err := row.Scan(&t.ID, &t.SourceID, &t.URL, &t.Name, &t.Author, &t.Description,
		&t.CoverURL, &t.Status, &t.Category, &t.Favorite, &t.LastUpdate, &t.NextUpdate)
	return t, err
}

// GetTitles selects the working set of an update run.
func (r *Repo) GetTitles(ctx context.Context, filter updater.TitleFilter) ([]models.Title, error) {
	var (
		conds []string
		args  []any
	)
	if filter.FavoritesOnly {
		conds = append(conds, "favorite = 1")
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	} else if len(filter.Categories) > 0 {
		placeholders := strings.Repeat("?,", len(filter.Categories))
		conds = append(conds, fmt.Sprintf("category IN (%s)", placeholders[:len(placeholders)-1]))
		for _, c := range filter.Categories {
			args = append(args, c)
		}
	}
	if filter.SkipCompleted {
		conds = append(conds, "status != ?")
		args = append(args, models.StatusCompleted)
	}

	query := `SELECT ` + titleColumns + ` FROM titles`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	defer rows.Close()

	var out []models.Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows titles: %w", err)
	}
	return out, nil
}

func (r *Repo) GetTitle(ctx context.Context, id int64) (*models.Title, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+titleColumns+` FROM titles WHERE id = ?`, id)
	t, err := scanTitle(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get title: %w", err)
	}
	return &t, nil
}

func (r *Repo) AddTitle(ctx context.Context, t models.Title) (models.Title, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO titles (source_id, url, title, author, description, cover_url, status, category, favorite, last_update, next_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.SourceID, t.URL, t.Name, t.Author, t.Description, t.CoverURL, t.Status, t.Category, t.Favorite, t.LastUpdate, t.NextUpdate)
	if err != nil {
		return t, fmt.Errorf("insert title: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return t, fmt.Errorf("title id: %w", err)
	}
	t.ID = id
	return t, nil
}

func (r *Repo) DeleteTitle(ctx context.Context, id int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM titles WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete title: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdateTitleMetadata rewrites the mutable title fields outside a
// reconciliation batch (metadata/cover refreshes).
func (r *Repo) UpdateTitleMetadata(ctx context.Context, t models.Title) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE titles
		SET title = ?, author = ?, description = ?, cover_url = ?, status = ?, category = ?, favorite = ?
		WHERE id = ?
	`, t.Name, t.Author, t.Description, t.CoverURL, t.Status, t.Category, t.Favorite, t.ID)
	if err != nil {
		return fmt.Errorf("update title metadata: %w", err)
	}
	return nil
}

const chapterColumns = `id, title_id, url, name, scanlator, chapter_number, source_order, date_upload, date_fetch, read, bookmarked`

func (r *Repo) GetChapters(ctx context.Context, titleID int64) ([]models.Chapter, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+chapterColumns+`
		FROM chapters
		WHERE title_id = ?
		ORDER BY source_order
	`, titleID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var out []models.Chapter
	for rows.Next() {
		var c models.Chapter
		if err := rows.Scan(&c.ID, &c.TitleID, &c.URL, &c.Name, &c.Scanlator, &c.ChapterNumber,
			&c.SourceOrder, &c.DateUpload, &c.DateFetch, &c.Read, &c.Bookmarked); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows chapters: %w", err)
	}
	return out, nil
}

// ApplyReconciliation persists one title's reconciliation batch as a single
// transaction: deletions first, then insertions, then changes, then the
// title row. Returns the inserted chapters with their assigned ids.
func (r *Repo) ApplyReconciliation(ctx context.Context, title models.Title, added, removed, changed []models.Chapter) ([]models.Chapter, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reconciliation: %w", err)
	}
	defer tx.Rollback()

	for _, c := range removed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE id = ?`, c.ID); err != nil {
			return nil, fmt.Errorf("delete chapter %d: %w", c.ID, err)
		}
	}

	out := make([]models.Chapter, 0, len(added))
	for _, c := range added {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO chapters (title_id, url, name, scanlator, chapter_number, source_order, date_upload, date_fetch, read, bookmarked)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.TitleID, c.URL, c.Name, c.Scanlator, c.ChapterNumber, c.SourceOrder, c.DateUpload, c.DateFetch, c.Read, c.Bookmarked)
		if err != nil {
			return nil, fmt.Errorf("insert chapter %q: %w", c.URL, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("chapter id: %w", err)
		}
		c.ID = id
		out = append(out, c)
	}

	for _, c := range changed {
		if _, err := tx.ExecContext(ctx, `
			UPDATE chapters
			SET name = ?, scanlator = ?, chapter_number = ?, source_order = ?, date_upload = ?
			WHERE id = ?
		`, c.Name, c.Scanlator, c.ChapterNumber, c.SourceOrder, c.DateUpload, c.ID); err != nil {
			return nil, fmt.Errorf("update chapter %d: %w", c.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE titles
		SET title = ?, author = ?, description = ?, cover_url = ?, status = ?, last_update = ?, next_update = ?
		WHERE id = ?
	`, title.Name, title.Author, title.Description, title.CoverURL, title.Status, title.LastUpdate, title.NextUpdate, title.ID); err != nil {
		return nil, fmt.Errorf("update title %d: %w", title.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reconciliation: %w", err)
	}
	return out, nil
}

func (r *Repo) SetChapterRead(ctx context.Context, chapterID int64, read bool) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE chapters SET read = ? WHERE id = ?`, read, chapterID)
	if err != nil {
		return false, fmt.Errorf("set chapter read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) SetChapterBookmarked(ctx context.Context, chapterID int64, bookmarked bool) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE chapters SET bookmarked = ? WHERE id = ?`, bookmarked, chapterID)
	if err != nil {
		return false, fmt.Errorf("set chapter bookmarked: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) GetTracks(ctx context.Context, titleID int64) ([]models.TrackRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, title_id, service, remote_id, last_chapter_read, total_chapters, score, synced_at
		FROM tracks
		WHERE title_id = ?
	`, titleID)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var out []models.TrackRecord
	for rows.Next() {
		var rec models.TrackRecord
		if err := rows.Scan(&rec.ID, &rec.TitleID, &rec.Service, &rec.RemoteID,
			&rec.LastChapterRead, &rec.TotalChapters, &rec.Score, &rec.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows tracks: %w", err)
	}
	return out, nil
}

func (r *Repo) SaveTrack(ctx context.Context, rec models.TrackRecord) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO tracks (title_id, service, remote_id, last_chapter_read, total_chapters, score, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title_id, service) DO UPDATE SET
			remote_id = excluded.remote_id,
			last_chapter_read = excluded.last_chapter_read,
			total_chapters = excluded.total_chapters,
			score = excluded.score,
			synced_at = excluded.synced_at
	`, rec.TitleID, rec.Service, rec.RemoteID, rec.LastChapterRead, rec.TotalChapters, rec.Score, rec.SyncedAt)
	if err != nil {
		return fmt.Errorf("save track: %w", err)
	}
	return nil
}
