package ingest

import (
	"context"
	"time"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Job is one ingestion run bound to a single article.
type Job struct {
	ID               string    `json:"id"`
	ArticleID        int64     `json:"articleId"`
	OwnerID          int64     `json:"-"`
	VideoID          string    `json:"videoId"`
	Title            string    `json:"title"`
	Slug             string    `json:"-"`
	AddToAttachments bool      `json:"addToAttachments"`
	Status           Status    `json:"status"`
	Attempts         int       `json:"attempts"`
	LocalVideo       string    `json:"localVideo,omitempty"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	StartedAt        time.Time `json:"startedAt,omitempty"`
	CompletedAt      time.Time `json:"completedAt,omitempty"`
	cancelFunc       context.CancelFunc
}

func (j *Job) done() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}
