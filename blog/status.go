package blog

import (
	"context"
	"errors"
	"fmt"

	"ytblog/content"
	"ytblog/store"
)

type State string

const (
	StateNotFound   State = "not_found"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Status is what clients poll while the worker runs.
type Status struct {
	Status       State              `json:"status"`
	IngestStatus store.IngestStatus `json:"ingest_status,omitempty"`
	Message      string             `json:"message,omitempty"`
}

// Status derives the processing state of an article from what is stored.
// A local player in the content or a video attachment means completed,
// whatever ingest_status says.
func (s *Service) Status(ctx context.Context, articleID int64) (Status, error) {
	a, err := s.db.GetArticle(ctx, articleID)
	if errors.Is(err, store.ErrNotFound) {
		return Status{Status: StateNotFound}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("loading article %d: %w", articleID, err)
	}
	return Evaluate(a), nil
}

// Evaluate applies the status rules to a loaded article.
func Evaluate(a *store.Article) Status {
	st := Status{IngestStatus: a.IngestStatus}
	switch {
	case content.HasLocalVideo(a.Content) || content.HasVideo(a.Attachments) || a.IngestStatus == store.IngestDone:
		st.Status = StateCompleted
		st.Message = "Video processing completed."
	case a.IngestStatus == store.IngestFailed:
		st.Status = StateFailed
		st.Message = "Video download failed."
	default:
		st.Status = StateProcessing
		st.Message = "Video is downloading..."
	}
	return st
}
