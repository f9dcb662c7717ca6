package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"ytblog/content"
	"ytblog/downloader"
	"ytblog/media"
	"ytblog/store"
)

// ArticleStore is the subset of persistence the worker mutates.
type ArticleStore interface {
	GetArticle(ctx context.Context, id int64) (*store.Article, error)
	UpdateAttachments(ctx context.Context, id int64, attachments []string) error
	UpdateContent(ctx context.Context, id int64, body string) error
	SetIngestStatus(ctx context.Context, id int64, status store.IngestStatus) error
}

// Downloader fetches a remote video into a local file.
type Downloader interface {
	Available() bool
	Download(ctx context.Context, videoURL, outputPath string) (string, error)
}

// CoverStore fetches and stores an article cover image.
type CoverStore interface {
	Store(ctx context.Context, articleID int64, videoID string) (string, []byte, error)
}

// ImageScaler renders resized copies of an image.
type ImageScaler interface {
	Scale(ctx context.Context, src, dst string, width int) error
}

// Options tune the processor.
type Options struct {
	Folder          string
	DownloadEnabled bool
	Retries         int
	Backoff         time.Duration
	ThumbnailSizes  []int
	// DownloadTimeout bounds all download attempts together and must stay
	// below the job timeout.
	DownloadTimeout time.Duration
	// FinalizeTimeout bounds the steps after the download, which run even
	// when the job context is already done.
	FinalizeTimeout time.Duration
}

const defaultFinalizeTimeout = time.Minute

// Processor runs the ingestion steps. Each step is best-effort: a failing
// download or cover fetch degrades the result but never aborts later steps.
type Processor struct {
	articles   ArticleStore
	downloader Downloader
	covers     CoverStore
	scaler     ImageScaler // nil disables thumbnail variants
	notifier   Notifier
	disk       *media.Disk
	opts       Options
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewProcessor(articles ArticleStore, dl Downloader, covers CoverStore, scaler ImageScaler,
	notifier Notifier, disk *media.Disk, opts Options, logger *slog.Logger) *Processor {
	return &Processor{
		articles:   articles,
		downloader: dl,
		covers:     covers,
		scaler:     scaler,
		notifier:   notifier,
		disk:       disk,
		opts:       opts,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// Process downloads the video, refreshes the cover, merges attachments and
// swaps the embed for a local player. It returns an error when a requested
// local video could not be obtained.
func (p *Processor) Process(ctx context.Context, j Job) (Outcome, error) {
	log := p.logger.With("article_id", j.ArticleID, "video_id", j.VideoID)
	log.Info("ingestion started")

	p.setStatus(ctx, j.ArticleID, store.IngestDownloading)
	p.notifier.Notify(ctx, j.OwnerID, LevelInfo, "Video processing started",
		fmt.Sprintf("Video download for %q started in the background.", j.Title))

	var out Outcome
	var added []string
	var downloadErr error

	if j.AddToAttachments {
		switch {
		case !p.opts.DownloadEnabled:
			downloadErr = errors.New("video download is disabled")
			log.Info("video download disabled, keeping the embed")
		default:
			out.Attempts, downloadErr = p.download(ctx, j)
			if downloadErr == nil {
				out.LocalVideo = media.VideoPath(p.opts.Folder, j.ArticleID, j.Slug)
				added = append(added, out.LocalVideo)
			} else {
				log.Error("video download failed", "attempts", out.Attempts, "error", downloadErr)
				added = append(added, content.WatchURL(j.VideoID))
			}
		}
	}

	// The job context may have expired or been canceled during the download.
	ctx, cancel := p.finalizeContext(ctx)
	defer cancel()

	if downloadErr != nil && p.opts.DownloadEnabled {
		p.notifyDownloadFailed(ctx, j)
	}

	cover := p.refreshCover(ctx, j, out.LocalVideo != "")
	if cover != "" {
		added = append(added, cover)
	}

	if len(added) > 0 {
		if err := p.mergeAttachments(ctx, j.ArticleID, added); err != nil {
			log.Error("merging attachments failed", "error", err)
		}
	}

	if !j.AddToAttachments {
		p.setStatus(ctx, j.ArticleID, store.IngestNone)
		log.Info("ingestion finished, no local video requested")
		return out, nil
	}
	if out.LocalVideo == "" {
		p.setStatus(ctx, j.ArticleID, store.IngestFailed)
		log.Info("ingestion finished without local video")
		return out, downloadErr
	}

	if err := p.rewriteContent(ctx, j, out.LocalVideo, cover); err != nil {
		log.Error("content rewrite failed", "error", err)
	}
	p.setStatus(ctx, j.ArticleID, store.IngestDone)
	p.notifier.Notify(ctx, j.OwnerID, LevelSuccess, "Video processing completed",
		fmt.Sprintf("The video for %q was downloaded and attached.", j.Title))
	log.Info("ingestion finished", "local_video", out.LocalVideo)
	return out, nil
}

// Abandon records the outcome of a job that never ran: the article keeps a
// link to the video and, when a local copy was requested, is marked failed.
func (p *Processor) Abandon(ctx context.Context, j Job) {
	ctx, cancel := p.finalizeContext(ctx)
	defer cancel()

	p.logger.Warn("ingestion job abandoned", "article_id", j.ArticleID, "video_id", j.VideoID)
	if !j.AddToAttachments {
		p.setStatus(ctx, j.ArticleID, store.IngestNone)
		return
	}
	if err := p.mergeAttachments(ctx, j.ArticleID, []string{content.WatchURL(j.VideoID)}); err != nil {
		p.logger.Error("merging attachments failed", "article_id", j.ArticleID, "error", err)
	}
	p.setStatus(ctx, j.ArticleID, store.IngestFailed)
	p.notifyDownloadFailed(ctx, j)
}

// finalizeContext keeps the values of ctx but not its deadline or
// cancellation.
func (p *Processor) finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := p.opts.FinalizeTimeout
	if d <= 0 {
		d = defaultFinalizeTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}

func (p *Processor) notifyDownloadFailed(ctx context.Context, j Job) {
	p.notifier.Notify(ctx, j.OwnerID, LevelDanger, "Video download failed",
		fmt.Sprintf("The video for %q could not be downloaded. The YouTube link was used instead.", j.Title))
}

// download runs the downloader, retrying transient failures with
// exponential backoff and jitter.
func (p *Processor) download(ctx context.Context, j Job) (int, error) {
	if !p.downloader.Available() {
		return 0, downloader.ErrToolMissing
	}

	if p.opts.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.DownloadTimeout)
		defer cancel()
	}

	target := p.disk.Path(media.VideoPath(p.opts.Folder, j.ArticleID, j.Slug))
	url := content.WatchURL(j.VideoID)

	var err error
	attempts := 0
	for attempts <= p.opts.Retries {
		attempts++
		_, err = p.downloader.Download(ctx, url, target)
		if err == nil || !retryable(err) || attempts > p.opts.Retries {
			break
		}

		wait := backoff(p.opts.Backoff, attempts)
		p.logger.Warn("download attempt failed, retrying",
			"article_id", j.ArticleID, "attempt", attempts, "next_in", wait, "error", err)
		if sleepErr := p.sleep(ctx, wait); sleepErr != nil {
			return attempts, sleepErr
		}
	}
	return attempts, err
}

// retryable reports whether a download error may clear up on its own.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, downloader.ErrToolMissing) {
		return false
	}
	var exitErr *downloader.ExitError
	return errors.As(err, &exitErr) ||
		errors.Is(err, downloader.ErrNoOutput) ||
		errors.Is(err, downloader.ErrInsufficientResources)
}

// backoff is base * 2^(attempt-1) plus up to 50% jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base * time.Duration(1<<uint(attempt-1))
	return d + time.Duration(rand.Int63n(int64(d/2)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// refreshCover fetches the cover again, independent of the copy stored at
// submission time, and renders thumbnail variants when a video was stored.
func (p *Processor) refreshCover(ctx context.Context, j Job, withThumbs bool) string {
	rel, _, err := p.covers.Store(ctx, j.ArticleID, j.VideoID)
	if err != nil {
		p.logger.Warn("cover fetch failed", "article_id", j.ArticleID, "error", err)
		return ""
	}
	if withThumbs {
		p.renderThumbnails(ctx, j, rel)
	}
	return rel
}

func (p *Processor) renderThumbnails(ctx context.Context, j Job, coverRel string) {
	if p.scaler == nil {
		p.logger.Debug("no image scaler configured, skipping thumbnails", "article_id", j.ArticleID)
		return
	}
	src := p.disk.Path(coverRel)
	for _, width := range p.opts.ThumbnailSizes {
		dst := p.disk.Path(media.ThumbPath(p.opts.Folder, j.ArticleID, j.Slug, width))
		if err := p.scaler.Scale(ctx, src, dst, width); err != nil {
			p.logger.Warn("thumbnail failed", "article_id", j.ArticleID, "width", width, "error", err)
		}
	}
}

// mergeAttachments re-reads the current list so concurrent edits survive,
// then folds the new entries in.
func (p *Processor) mergeAttachments(ctx context.Context, articleID int64, added []string) error {
	a, err := p.articles.GetArticle(ctx, articleID)
	if err != nil {
		return err
	}
	merged := content.MergeAttachments(a.Attachments, added)
	return p.articles.UpdateAttachments(ctx, articleID, merged)
}

// rewriteContent swaps the embed block for a local player. An embed that was
// edited in the meantime is left alone.
func (p *Processor) rewriteContent(ctx context.Context, j Job, localVideo, cover string) error {
	a, err := p.articles.GetArticle(ctx, j.ArticleID)
	if err != nil {
		return err
	}

	poster := ""
	if cover != "" {
		poster = p.disk.URL(cover)
	}
	block := content.LocalPlayerBlock(p.disk.URL(localVideo), poster)

	body, ok := content.ReplaceEmbed(a.Content, j.VideoID, block)
	if !ok {
		p.logger.Warn("embed block not found, content left unchanged", "article_id", j.ArticleID)
		return nil
	}
	return p.articles.UpdateContent(ctx, j.ArticleID, body)
}

func (p *Processor) setStatus(ctx context.Context, articleID int64, status store.IngestStatus) {
	if err := p.articles.SetIngestStatus(ctx, articleID, status); err != nil {
		p.logger.Warn("could not record ingest status", "article_id", articleID, "status", status, "error", err)
	}
}
