package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ytblog/blog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChecker struct {
	mu     sync.Mutex
	calls  int
	script func(call int) (blog.Status, error)
}

func (c *scriptedChecker) Status(ctx context.Context, articleID int64) (blog.Status, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.mu.Unlock()
	return c.script(call)
}

func (c *scriptedChecker) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func fastPoller(s *TaskStore, c StatusChecker) *Poller {
	p := NewPoller(s, c, discardLogger())
	p.Interval = time.Millisecond
	p.RemoveDelay = 10 * time.Millisecond
	return p
}

func TestPoller_Completed(t *testing.T) {
	s, _ := openTestStore(t)
	s.Upsert("abc123", "Trip", TaskPending, "Processing video…")
	checker := &scriptedChecker{script: func(call int) (blog.Status, error) {
		switch call {
		case 1:
			return blog.Status{}, errors.New("connection refused")
		case 2:
			return blog.Status{Status: blog.StateProcessing}, nil
		case 3:
			return blog.Status{}, &APIError{StatusCode: 500}
		}
		return blog.Status{Status: blog.StateCompleted}, nil
	}}

	res, err := fastPoller(s, checker).Poll(context.Background(), 1, "abc123", "Trip")
	require.NoError(t, err)
	assert.Equal(t, PollCompleted, res)
	assert.Equal(t, 4, checker.Calls())

	task, ok := s.Get("abc123")
	require.True(t, ok)
	assert.Equal(t, TaskSuccess, task.Status)
	assert.Equal(t, "Completed", task.Message)

	require.Eventually(t, func() bool {
		_, ok := s.Get("abc123")
		return !ok
	}, time.Second, 5*time.Millisecond, "completed task is removed after the delay")
}

func TestPoller_NotFound(t *testing.T) {
	s, _ := openTestStore(t)
	checker := &scriptedChecker{script: func(int) (blog.Status, error) {
		return blog.Status{}, &APIError{StatusCode: 404}
	}}

	res, err := fastPoller(s, checker).Poll(context.Background(), 1, "abc123", "Trip")
	require.NoError(t, err)
	assert.Equal(t, PollFailed, res)
	assert.Equal(t, 1, checker.Calls())

	task, _ := s.Get("abc123")
	assert.Equal(t, TaskError, task.Status)
	assert.Equal(t, "Article not found (404)", task.Message)
}

func TestPoller_DownloadFailed(t *testing.T) {
	s, _ := openTestStore(t)
	checker := &scriptedChecker{script: func(int) (blog.Status, error) {
		return blog.Status{Status: blog.StateFailed}, nil
	}}

	res, err := fastPoller(s, checker).Poll(context.Background(), 1, "abc123", "Trip")
	require.NoError(t, err)
	assert.Equal(t, PollFailed, res)

	task, _ := s.Get("abc123")
	assert.Equal(t, "Video download failed", task.Message)
}

func TestPoller_TimesOutAfterMaxTicks(t *testing.T) {
	s, _ := openTestStore(t)
	checker := &scriptedChecker{script: func(int) (blog.Status, error) {
		return blog.Status{Status: blog.StateProcessing}, nil
	}}

	p := fastPoller(s, checker)
	require.Equal(t, 720, p.MaxTicks)

	res, err := p.Poll(context.Background(), 1, "abc123", "Trip")
	require.NoError(t, err)
	assert.Equal(t, PollTimedOut, res)
	assert.Equal(t, 720, checker.Calls())

	task, _ := s.Get("abc123")
	assert.Equal(t, TaskError, task.Status)
	assert.Equal(t, "Timed out", task.Message)
}

func TestPoller_RemovedTaskDoesNotBreakTicks(t *testing.T) {
	s, _ := openTestStore(t)
	s.Upsert("abc123", "Trip", TaskPending, "")
	checker := &scriptedChecker{script: func(call int) (blog.Status, error) {
		if call == 1 {
			s.Remove("abc123")
			return blog.Status{Status: blog.StateProcessing}, nil
		}
		return blog.Status{Status: blog.StateCompleted}, nil
	}}

	res, err := fastPoller(s, checker).Poll(context.Background(), 1, "abc123", "Trip")
	require.NoError(t, err)
	assert.Equal(t, PollCompleted, res)
}

func TestPoller_Canceled(t *testing.T) {
	s, _ := openTestStore(t)
	checker := &scriptedChecker{script: func(int) (blog.Status, error) {
		return blog.Status{Status: blog.StateProcessing}, nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	p := fastPoller(s, checker)
	p.Interval = time.Hour
	cancel()

	_, err := p.Poll(ctx, 1, "abc123", "Trip")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, checker.Calls())
}
