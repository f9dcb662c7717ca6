package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverFetcher(t *testing.T) {
	t.Run("prefers high resolution", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/abc123/maxresdefault.jpg", r.URL.Path)
			w.Write([]byte("maxres"))
		}))
		defer server.Close()

		data, err := NewCoverFetcher(server.URL, 0, 0).Fetch(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, "maxres", string(data))
	})

	t.Run("falls back to lower resolution", func(t *testing.T) {
		var paths []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.Path)
			if r.URL.Path == "/abc123/maxresdefault.jpg" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte("hq"))
		}))
		defer server.Close()

		data, err := NewCoverFetcher(server.URL, 0, 0).Fetch(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, "hq", string(data))
		assert.Equal(t, []string{"/abc123/maxresdefault.jpg", "/abc123/hqdefault.jpg"}, paths)
	})

	t.Run("both renditions missing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := NewCoverFetcher(server.URL, 0, 0).Fetch(context.Background(), "abc123")
		require.Error(t, err)
		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	})

	t.Run("enforces size limit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("0123456789"))
		}))
		defer server.Close()

		_, err := NewCoverFetcher(server.URL, 4, 0).Fetch(context.Background(), "abc123")
		assert.ErrorContains(t, err, "exceeds limit")
	})
}

type staticFetcher struct {
	data []byte
	err  error
}

func (f staticFetcher) Fetch(ctx context.Context, videoID string) ([]byte, error) {
	return f.data, f.err
}

func TestCoversStore(t *testing.T) {
	disk := NewDisk(t.TempDir(), "/storage/")
	covers := &Covers{Fetcher: staticFetcher{data: []byte("jpeg")}, Disk: disk, Folder: "blog"}

	rel, data, err := covers.Store(context.Background(), 7, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "blog/7/images/youtube-cover.jpg", rel)
	assert.Equal(t, "jpeg", string(data))
	assert.True(t, disk.Exists(rel))
	assert.Equal(t, "/storage/blog/7/images/youtube-cover.jpg", disk.URL(rel))

	stored, err := os.ReadFile(disk.Path(rel))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(stored))

	failing := &Covers{Fetcher: staticFetcher{err: errors.New("offline")}, Disk: disk, Folder: "blog"}
	_, _, err = failing.Store(context.Background(), 8, "abc123")
	assert.Error(t, err)
	assert.False(t, disk.Exists(CoverPath("blog", 8)))
}

func TestDiskPathStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	disk := NewDisk(root, "/storage")
	assert.Equal(t, disk.Path("escape.txt"), disk.Path("../../escape.txt"))
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "blog/3/videos/trip.mp4", VideoPath("blog", 3, "trip"))
	assert.Equal(t, "blog/3/videos/thumbs/trip_300.jpg", ThumbPath("blog", 3, "trip", 300))
}
