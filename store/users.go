package store

import (
	"context"
	"database/sql"
	"errors"
)

// CreateUser inserts a user and returns its ID.
func (db *DB) CreateUser(ctx context.Context, name, token string, canUseExtension bool) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (name, api_token, can_use_extension) VALUES (?, ?, ?)",
		name, token, boolToInt(canUseExtension),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UserByToken looks up the owner of an API key.
func (db *DB) UserByToken(ctx context.Context, token string) (*User, error) {
	var u User
	var allowed int
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, name, api_token, can_use_extension FROM users WHERE api_token = ?", token,
	).Scan(&u.ID, &u.Name, &u.APIToken, &allowed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CanUseExtension = allowed != 0
	return &u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
