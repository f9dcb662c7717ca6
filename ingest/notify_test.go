package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"ytblog/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBNotifier(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "ytblog.db"))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	uid, err := db.CreateUser(ctx, "editor", "token", true)
	require.NoError(t, err)

	n := NewDBNotifier(db, discardLogger())
	n.Notify(ctx, uid, LevelDanger, "Video download failed", "body")
	n.Notify(ctx, 0, LevelInfo, "ownerless", "skipped")

	list, err := db.ListNotifications(ctx, uid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "danger", list[0].Level)
	assert.Equal(t, "Video download failed", list[0].Title)
}
