package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ytblog/blog"
)

// ErrSettingsMissing means no site URL or API key was configured.
var ErrSettingsMissing = errors.New("site url or api key not configured")

// API is the part of the server API a submission needs.
type API interface {
	StatusChecker
	Store(ctx context.Context, sub blog.Submission) (*StoreResult, error)
}

// Submitter sends a video to the server and follows it to a terminal state,
// recording every step in the task store.
type Submitter struct {
	Store   *TaskStore
	Connect func(Settings) API
	Logger  *slog.Logger

	// Poll settings; zero values use the defaults.
	Interval    time.Duration
	MaxTicks    int
	RemoveDelay time.Duration
}

// Submit runs the whole flow and returns the final task.
func (s *Submitter) Submit(ctx context.Context, sub blog.Submission) (Task, error) {
	videoID, title := sub.VideoID, sub.Title
	s.Store.Upsert(videoID, title, TaskPending, "")

	settings := s.Store.Settings()
	if !settings.Complete() {
		s.Store.Upsert(videoID, title, TaskError, "Settings missing")
		return s.task(videoID), ErrSettingsMissing
	}

	api := s.Connect(settings)
	res, err := api.Store(ctx, sub)
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = "An error occurred"
		}
		s.Store.Upsert(videoID, title, TaskError, msg)
		return s.task(videoID), err
	case err != nil:
		s.Logger.Warn("submission failed", "video_id", videoID, "error", err)
		s.Store.Upsert(videoID, title, TaskError, "Server error")
		return s.task(videoID), err
	}

	s.Store.Upsert(videoID, title, TaskPending, "Processing video…")
	if res.BlogID == 0 || !sub.AddToAttachments {
		s.Store.Upsert(videoID, title, TaskSuccess, "Saved (no video)")
		s.Store.RemoveAfter(videoID, s.removeDelay())
		return s.task(videoID), nil
	}

	p := NewPoller(s.Store, api, s.Logger)
	if s.Interval > 0 {
		p.Interval = s.Interval
	}
	if s.MaxTicks > 0 {
		p.MaxTicks = s.MaxTicks
	}
	p.RemoveDelay = s.removeDelay()

	if _, err := p.Poll(ctx, res.BlogID, videoID, title); err != nil {
		return s.task(videoID), err
	}
	return s.task(videoID), nil
}

func (s *Submitter) removeDelay() time.Duration {
	if s.RemoveDelay > 0 {
		return s.RemoveDelay
	}
	return DefaultRemoveDelay
}

func (s *Submitter) task(videoID string) Task {
	t, _ := s.Store.Get(videoID)
	return t
}
