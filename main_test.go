package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"ytblog/content"
	"ytblog/media"
	"ytblog/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "warn", "json").Info("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, "debug", "json").Debug("shown", "k", "v")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])

	buf.Reset()
	newLogger(&buf, "bogus", "text").Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestShowArticleMissing(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "ytblog.db"))
	require.NoError(t, err)
	defer db.Close()

	disk := media.NewDisk(t.TempDir(), "/storage")
	assert.ErrorIs(t, showArticle(context.Background(), io.Discard, db, disk, 99), store.ErrNotFound)
}

func TestShowArticleFlagsMissingFiles(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "ytblog.db"))
	require.NoError(t, err)
	defer db.Close()
	disk := media.NewDisk(t.TempDir(), "/storage")

	a := &store.Article{Title: "Trip", Slug: "trip", Content: content.Build("abc123", "", ""), VideoID: "abc123"}
	require.NoError(t, db.CreateArticle(ctx, a))
	cover := media.CoverPath("blog", a.ID)
	video := media.VideoPath("blog", a.ID, "trip")
	require.NoError(t, disk.Put(cover, []byte("jpeg")))
	require.NoError(t, db.UpdateAttachments(ctx, a.ID, []string{cover, video, content.WatchURL("abc123")}))

	var out bytes.Buffer
	require.NoError(t, showArticle(ctx, &out, db, disk, a.ID))
	assert.Contains(t, out.String(), "# Trip")
	assert.Contains(t, out.String(), "attachment: "+cover+"\n")
	assert.Contains(t, out.String(), "attachment: "+video+" (missing on disk)")
	assert.Contains(t, out.String(), "attachment: "+content.WatchURL("abc123")+"\n")
}
