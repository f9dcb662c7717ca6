package client

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) (*TaskStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.yaml")
	s := OpenTaskStore(path, discardLogger())
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestTaskStore_UpsertAndRemove(t *testing.T) {
	s, path := openTestStore(t)
	now := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return now }

	s.Upsert("abc123", "Trip", TaskPending, "")
	s.Upsert("abc123", "Trip", TaskPending, "Processing video…")

	task, ok := s.Get("abc123")
	require.True(t, ok)
	assert.Equal(t, Task{Title: "Trip", Status: TaskPending, Message: "Processing video…", Timestamp: 1700000000000}, task)
	assert.Len(t, s.Snapshot(), 1)

	reopened := OpenTaskStore(path, discardLogger())
	assert.Equal(t, s.Snapshot(), reopened.Snapshot(), "state survives a new process")

	s.Remove("abc123")
	s.Remove("missing")
	assert.Empty(t, s.Snapshot())
}

func TestTaskStore_Settings(t *testing.T) {
	s, path := openTestStore(t)
	assert.False(t, s.Settings().Complete())

	s.SaveSettings(Settings{SiteURL: "https://blog.example.com", APIKey: "key"})
	s.Upsert("v1", "T", TaskPending, "")

	reopened := OpenTaskStore(path, discardLogger())
	assert.Equal(t, "key", reopened.Settings().APIKey)
	assert.Len(t, reopened.Snapshot(), 1)
}

func TestTaskStore_Subscribe(t *testing.T) {
	s, _ := openTestStore(t)

	var mu sync.Mutex
	var seen []int
	unsubscribe := s.Subscribe(func(q map[string]Task) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, len(q))
	})

	s.Upsert("a", "A", TaskPending, "")
	s.Upsert("b", "B", TaskPending, "")
	s.Remove("a")
	unsubscribe()
	s.Remove("b")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 1}, seen)
}

func TestTaskStore_WatchSeesOtherProcesses(t *testing.T) {
	viewer, path := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, viewer.Watch(ctx))

	updates := make(chan map[string]Task, 10)
	viewer.Subscribe(func(q map[string]Task) { updates <- q })

	worker := OpenTaskStore(path, discardLogger())
	worker.Upsert("abc123", "Trip", TaskSuccess, "Completed")

	select {
	case q := <-updates:
		assert.Equal(t, TaskSuccess, q["abc123"].Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification from the other store")
	}
}

func TestTaskStore_RemoveAfter(t *testing.T) {
	s, _ := openTestStore(t)

	s.Upsert("done", "D", TaskSuccess, "Completed")
	s.RemoveAfter("done", 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := s.Get("done")
		return !ok
	}, time.Second, 5*time.Millisecond)

	t.Run("resubmitted task is kept", func(t *testing.T) {
		s.Upsert("again", "A", TaskError, "Server error")
		s.RemoveAfter("again", 20*time.Millisecond)
		s.Upsert("again", "A", TaskPending, "")
		time.Sleep(60 * time.Millisecond)
		_, ok := s.Get("again")
		assert.True(t, ok)
	})
}

func TestTaskStore_RemovalOutlivesProcess(t *testing.T) {
	s, path := openTestStore(t)

	s.Upsert("done", "D", TaskSuccess, "Completed")
	s.Upsert("busy", "B", TaskPending, "Processing video…")
	s.RemoveAfter("done", time.Minute)
	s.RemoveAfter("busy", time.Minute)
	require.NoError(t, s.Close())

	reopened := OpenTaskStore(path, discardLogger())
	defer reopened.Close()
	_, ok := reopened.Get("done")
	assert.True(t, ok, "not due yet")

	reopened.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok = reopened.Get("done")
	assert.False(t, ok)
	_, ok = reopened.Get("busy")
	assert.True(t, ok, "pending tasks never expire")

	reopened.Upsert("other", "O", TaskPending, "")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "done:")
}

func TestTaskStore_FallsBackToMemory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	s := OpenTaskStore(filepath.Join(blocker, "client.yaml"), discardLogger())
	defer s.Close()

	assert.NotPanics(t, func() {
		s.Upsert("abc123", "Trip", TaskPending, "")
	})
	assert.True(t, s.InMemory())
	_, ok := s.Get("abc123")
	assert.True(t, ok)
	assert.Error(t, s.Watch(context.Background()))
}

func TestTaskStore_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("task_queue: [unclosed"), 0o600))

	s := OpenTaskStore(path, discardLogger())
	defer s.Close()
	assert.Empty(t, s.Snapshot())

	s.Upsert("v", "T", TaskPending, "")
	assert.Len(t, s.Snapshot(), 1)
	assert.False(t, s.InMemory())
}
