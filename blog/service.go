package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"ytblog/content"
	"ytblog/ingest"
	"ytblog/store"
)

const (
	maxTitleLength  = 255
	maxSlugAttempts = 10
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Dispatcher hands an article over to background ingestion.
type Dispatcher interface {
	Submit(j *ingest.Job) (*ingest.Job, error)
}

// CoverStore fetches the cover of a video and stores it for an article.
type CoverStore interface {
	Store(ctx context.Context, articleID int64, videoID string) (string, []byte, error)
}

// Submission is a video the user wants to turn into a draft article.
type Submission struct {
	Title            string  `json:"title"`
	VideoID          string  `json:"video_id"`
	Description      string  `json:"description"`
	Note             string  `json:"note"`
	CategoryIDs      []int64 `json:"category_ids"`
	AddToAttachments bool    `json:"add_to_attachments"`
}

// SubmitResult identifies the created draft.
type SubmitResult struct {
	ArticleID int64
	URL       string
	JobID     string
}

// Service creates draft articles from videos and answers status queries.
type Service struct {
	db         *store.DB
	covers     CoverStore
	dispatcher Dispatcher
	baseURL    string
	logger     *slog.Logger
}

func NewService(db *store.DB, covers CoverStore, dispatcher Dispatcher, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		db:         db,
		covers:     covers,
		dispatcher: dispatcher,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

// EditURL is the admin panel address of an article.
func (s *Service) EditURL(articleID int64) string {
	return fmt.Sprintf("%s/admin/blogs/%d/edit", s.baseURL, articleID)
}

// Submit validates a submission and creates an unpublished article for it.
// The cover is fetched synchronously; a local video copy, when requested,
// is left to the ingestion worker.
func (s *Service) Submit(ctx context.Context, owner *store.User, in Submission) (*SubmitResult, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.VideoID = strings.TrimSpace(in.VideoID)
	in.CategoryIDs = uniqueIDs(in.CategoryIDs)

	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	existing, err := s.db.FindByVideoID(ctx, in.VideoID)
	switch {
	case err == nil:
		return nil, &DuplicateError{VideoID: in.VideoID, ExistingID: existing.ID}
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("checking for duplicate video: %w", err)
	}

	a := &store.Article{
		Title:        in.Title,
		Content:      content.Build(in.VideoID, in.Note, in.Description),
		VideoID:      in.VideoID,
		Tags:         content.Hashtags(in.Description),
		CategoryIDs:  in.CategoryIDs,
		IngestStatus: store.IngestNone,
	}
	if owner != nil {
		a.UserID = owner.ID
	}
	if in.AddToAttachments {
		a.IngestStatus = store.IngestQueued
	}
	if err := s.createArticle(ctx, a); err != nil {
		if errors.Is(err, store.ErrDuplicateVideo) {
			if found, ferr := s.db.FindByVideoID(ctx, in.VideoID); ferr == nil {
				return nil, &DuplicateError{VideoID: in.VideoID, ExistingID: found.ID}
			}
			return nil, &DuplicateError{VideoID: in.VideoID}
		}
		return nil, fmt.Errorf("creating article: %w", err)
	}
	log := s.logger.With("article_id", a.ID, "video_id", a.VideoID)

	if rel, _, err := s.covers.Store(ctx, a.ID, a.VideoID); err != nil {
		log.Warn("cover fetch failed", "error", err)
	} else if err := s.db.UpdateAttachments(ctx, a.ID, []string{rel}); err != nil {
		log.Warn("registering cover failed", "error", err)
	}

	result := &SubmitResult{ArticleID: a.ID, URL: s.EditURL(a.ID)}
	if in.AddToAttachments {
		ownerID := int64(0)
		if owner != nil {
			ownerID = owner.ID
		}
		j, err := s.dispatcher.Submit(&ingest.Job{
			ArticleID:        a.ID,
			OwnerID:          ownerID,
			VideoID:          a.VideoID,
			Title:            a.Title,
			Slug:             a.Slug,
			AddToAttachments: true,
		})
		if err != nil {
			log.Error("dispatching ingestion failed", "error", err)
			if serr := s.db.SetIngestStatus(ctx, a.ID, store.IngestFailed); serr != nil {
				log.Warn("could not record ingest status", "error", serr)
			}
		} else {
			result.JobID = j.ID
		}
	}

	log.Info("draft article created", "slug", a.Slug, "local_copy", in.AddToAttachments)
	return result, nil
}

// createArticle picks a free slug and stores a. A slug taken by a concurrent
// submission between the check and the insert moves on to the next suffix.
func (s *Service) createArticle(ctx context.Context, a *store.Article) error {
	var err error
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		a.Slug, err = content.UniqueSlug(a.Title, func(candidate string) (bool, error) {
			return s.db.SlugExists(ctx, candidate)
		})
		if err != nil {
			return fmt.Errorf("generating slug: %w", err)
		}
		err = s.db.CreateArticle(ctx, a)
		if !errors.Is(err, store.ErrDuplicateSlug) {
			return err
		}
		s.logger.Debug("slug taken concurrently, retrying", "slug", a.Slug)
	}
	return err
}

func (s *Service) validate(ctx context.Context, in Submission) error {
	verr := &ValidationError{}

	switch n := utf8.RuneCountInString(in.Title); {
	case n == 0:
		verr.add("title", "The title field is required.")
	case n > maxTitleLength:
		verr.add("title", fmt.Sprintf("The title may not be greater than %d characters.", maxTitleLength))
	}

	switch {
	case in.VideoID == "":
		verr.add("video_id", "The video id field is required.")
	case !videoIDPattern.MatchString(in.VideoID):
		verr.add("video_id", "The video id format is invalid.")
	}

	if len(in.CategoryIDs) == 0 {
		verr.add("category_ids", "The category ids field is required.")
	} else {
		missing, err := s.db.MissingCategories(ctx, in.CategoryIDs)
		if err != nil {
			return fmt.Errorf("checking categories: %w", err)
		}
		if len(missing) > 0 {
			verr.add("category_ids", fmt.Sprintf("The selected category %d is invalid.", missing[0]))
		}
	}

	return verr.orNil()
}

func uniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
