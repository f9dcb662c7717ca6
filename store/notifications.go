package store

import "context"

// InsertNotification stores a notification for a user.
func (db *DB) InsertNotification(ctx context.Context, n *Notification) error {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO notifications (user_id, level, title, body) VALUES (?, ?, ?, ?)",
		n.UserID, n.Level, n.Title, n.Body,
	)
	if err != nil {
		return err
	}
	n.ID, err = result.LastInsertId()
	return err
}

// ListNotifications returns a user's notifications, newest first.
func (db *DB) ListNotifications(ctx context.Context, userID int64) ([]Notification, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, level, title, body, created_at
		FROM notifications WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Level, &n.Title, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
