package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ListCategories returns all categories ordered by explicit sort, then title.
func (db *DB) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, parent_id, title, slug, sort, is_published
		FROM categories ORDER BY sort, title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		var c Category
		var userID, parentID sql.NullInt64
		var published int
		if err := rows.Scan(&c.ID, &userID, &parentID, &c.Title, &c.Slug, &c.Sort, &published); err != nil {
			return nil, err
		}
		if userID.Valid {
			c.UserID = &userID.Int64
		}
		if parentID.Valid {
			c.ParentID = &parentID.Int64
		}
		c.Published = published != 0
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CreateCategory inserts a category. Parents are fixed at creation; there is
// no re-parenting, so the forest cannot acquire cycles.
func (db *DB) CreateCategory(ctx context.Context, c *Category) error {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO categories (user_id, parent_id, title, slug, sort, is_published)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.UserID, c.ParentID, c.Title, c.Slug, c.Sort, boolToInt(c.Published),
	)
	if err != nil {
		return fmt.Errorf("inserting category: %w", err)
	}
	c.ID, err = result.LastInsertId()
	return err
}

// CategorySlugExists reports whether a category already uses slug.
func (db *DB) CategorySlugExists(ctx context.Context, slug string) (bool, error) {
	return db.exists(ctx, "SELECT 1 FROM categories WHERE slug = ?", slug)
}

// CategoryExists reports whether a category with id exists.
func (db *DB) CategoryExists(ctx context.Context, id int64) (bool, error) {
	return db.exists(ctx, "SELECT 1 FROM categories WHERE id = ?", id)
}

// MissingCategories returns the ids in ids that have no category row.
func (db *DB) MissingCategories(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id FROM categories WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (db *DB) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
