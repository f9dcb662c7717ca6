package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ytblog/blog"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxTicks    = 720
	DefaultRemoveDelay = 5 * time.Second
)

// PollResult is where a polling run ended.
type PollResult string

const (
	PollCompleted PollResult = "completed"
	PollFailed    PollResult = "failed"
	PollTimedOut  PollResult = "timed_out"
)

// StatusChecker asks the server about an article.
type StatusChecker interface {
	Status(ctx context.Context, articleID int64) (blog.Status, error)
}

// Poller mirrors server-side progress of one article into the task store.
type Poller struct {
	Store       *TaskStore
	Checker     StatusChecker
	Interval    time.Duration
	MaxTicks    int
	RemoveDelay time.Duration
	Logger      *slog.Logger
}

func NewPoller(store *TaskStore, checker StatusChecker, logger *slog.Logger) *Poller {
	return &Poller{
		Store:       store,
		Checker:     checker,
		Interval:    DefaultInterval,
		MaxTicks:    DefaultMaxTicks,
		RemoveDelay: DefaultRemoveDelay,
		Logger:      logger,
	}
}

// Poll checks the article every Interval until it reaches a terminal state
// or MaxTicks checks were made. Transport failures and unexpected answers
// count as ticks but change nothing.
func (p *Poller) Poll(ctx context.Context, articleID int64, videoID, title string) (PollResult, error) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	log := p.Logger.With("article_id", articleID, "video_id", videoID)
	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		st, err := p.Checker.Status(ctx, articleID)
		var apiErr *APIError
		switch {
		case err == nil && st.Status == blog.StateCompleted:
			p.Store.Upsert(videoID, title, TaskSuccess, "Completed")
			p.Store.RemoveAfter(videoID, p.RemoveDelay)
			log.Info("video processing completed", "ticks", tick)
			return PollCompleted, nil
		case err == nil && st.Status == blog.StateFailed:
			p.Store.Upsert(videoID, title, TaskError, "Video download failed")
			log.Warn("video processing failed", "ticks", tick)
			return PollFailed, nil
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
			p.Store.Upsert(videoID, title, TaskError, "Article not found (404)")
			log.Warn("article not found", "ticks", tick)
			return PollFailed, nil
		case err != nil && ctx.Err() != nil:
			return "", ctx.Err()
		case err != nil:
			log.Debug("status check failed, will retry", "tick", tick, "error", err)
		}

		if tick >= p.MaxTicks {
			p.Store.Upsert(videoID, title, TaskError, "Timed out")
			log.Warn("gave up polling", "ticks", tick)
			return PollTimedOut, nil
		}
	}
}
