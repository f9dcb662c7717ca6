package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const articleColumns = `id, user_id, title, slug, content, COALESCE(video_id, ''), attachments, tags,
	is_published, ingest_status, created_at, updated_at`

// CreateArticle inserts an article together with its category links and
// sets a.ID. Nothing is stored when any part fails. A second article for the
// same video id fails with ErrDuplicateVideo, a taken slug with
// ErrDuplicateSlug.
func (db *DB) CreateArticle(ctx context.Context, a *Article) error {
	attachments, err := encodeList(a.Attachments)
	if err != nil {
		return err
	}
	tags, err := encodeList(a.Tags)
	if err != nil {
		return err
	}
	if a.IngestStatus == "" {
		a.IngestStatus = IngestNone
	}

	var owner, videoID any
	if a.UserID != 0 {
		owner = a.UserID
	}
	if a.VideoID != "" {
		videoID = a.VideoID
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO articles (user_id, title, slug, content, video_id, attachments, tags, is_published, ingest_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		owner, a.Title, a.Slug, a.Content, videoID, attachments, tags, boolToInt(a.Published), a.IngestStatus,
	)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "UNIQUE constraint failed: articles.video_id"):
			return ErrDuplicateVideo
		case strings.Contains(err.Error(), "UNIQUE constraint failed: articles.slug"):
			return ErrDuplicateSlug
		}
		return fmt.Errorf("inserting article: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	if err := linkCategories(ctx, tx, id, a.CategoryIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	a.ID = id
	return nil
}

// GetArticle returns an article with its category ids.
func (db *DB) GetArticle(ctx context.Context, id int64) (*Article, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+articleColumns+" FROM articles WHERE id = ?", id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.CategoryIDs, err = db.articleCategoryIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FindByVideoID returns the article already holding videoID, either through
// the indexed video_id column or as a substring of its attachment list.
func (db *DB) FindByVideoID(ctx context.Context, videoID string) (*Article, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+articleColumns+` FROM articles
		WHERE video_id = ? OR instr(attachments, ?) > 0
		ORDER BY id LIMIT 1`, videoID, videoID)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// SlugExists reports whether an article already uses slug.
func (db *DB) SlugExists(ctx context.Context, slug string) (bool, error) {
	return db.exists(ctx, "SELECT 1 FROM articles WHERE slug = ?", slug)
}

func linkCategories(ctx context.Context, tx *sql.Tx, articleID int64, ids []int64) error {
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO article_categories (article_id, category_id) VALUES (?, ?)",
			articleID, id,
		); err != nil {
			return fmt.Errorf("attaching category %d: %w", id, err)
		}
	}
	return nil
}

// UpdateAttachments replaces the article's attachment list.
func (db *DB) UpdateAttachments(ctx context.Context, id int64, attachments []string) error {
	return db.updateList(ctx, "attachments", id, attachments)
}

// UpdateContent replaces the article body.
func (db *DB) UpdateContent(ctx context.Context, id int64, body string) error {
	return db.touch(ctx, "UPDATE articles SET content = ?, updated_at = datetime('now') WHERE id = ?", body, id)
}

// SetIngestStatus records the ingestion worker's progress.
func (db *DB) SetIngestStatus(ctx context.Context, id int64, status IngestStatus) error {
	return db.touch(ctx, "UPDATE articles SET ingest_status = ?, updated_at = datetime('now') WHERE id = ?", status, id)
}

func (db *DB) updateList(ctx context.Context, column string, id int64, values []string) error {
	encoded, err := encodeList(values)
	if err != nil {
		return err
	}
	return db.touch(ctx, "UPDATE articles SET "+column+" = ?, updated_at = datetime('now') WHERE id = ?", encoded, id)
}

func (db *DB) touch(ctx context.Context, query string, args ...any) error {
	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) articleCategoryIDs(ctx context.Context, articleID int64) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT category_id FROM article_categories WHERE article_id = ? ORDER BY category_id", articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanArticle(row *sql.Row) (*Article, error) {
	var a Article
	var userID sql.NullInt64
	var attachments, tags string
	var published int
	var status string
	if err := row.Scan(&a.ID, &userID, &a.Title, &a.Slug, &a.Content, &a.VideoID,
		&attachments, &tags, &published, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.UserID = userID.Int64
	a.Published = published != 0
	a.IngestStatus = IngestStatus(status)
	if err := json.Unmarshal([]byte(attachments), &a.Attachments); err != nil {
		return nil, fmt.Errorf("decoding attachments of article %d: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of article %d: %w", a.ID, err)
	}
	return &a, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
