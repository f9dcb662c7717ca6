package ingest

import (
	"context"
	"log/slog"

	"ytblog/store"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelDanger  Level = "danger"
)

// Notifier delivers a message to an article owner. Delivery is fire and
// forget; failures are logged by the implementation.
type Notifier interface {
	Notify(ctx context.Context, userID int64, level Level, title, body string)
}

// DBNotifier stores notifications in the database for the admin panel.
type DBNotifier struct {
	db     *store.DB
	logger *slog.Logger
}

func NewDBNotifier(db *store.DB, logger *slog.Logger) *DBNotifier {
	return &DBNotifier{db: db, logger: logger}
}

func (n *DBNotifier) Notify(ctx context.Context, userID int64, level Level, title, body string) {
	if userID == 0 {
		return
	}
	err := n.db.InsertNotification(ctx, &store.Notification{
		UserID: userID,
		Level:  string(level),
		Title:  title,
		Body:   body,
	})
	if err != nil {
		n.logger.Warn("could not store notification", "user_id", userID, "title", title, "error", err)
	}
}
