package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ytblog/config"

	"github.com/lithammer/shortuuid/v4"
)

var (
	// ErrAlreadyQueued is returned when the article already has a live job.
	ErrAlreadyQueued = errors.New("article already has an ingestion job")
	// ErrQueueFull is returned when the backlog cannot take another job.
	ErrQueueFull = errors.New("ingestion queue is full")
	// ErrJobNotFound is returned for an unknown job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobFinished is returned when canceling a job that already ended.
	ErrJobFinished = errors.New("job already finished")
)

// Outcome is what a processed job produced.
type Outcome struct {
	Attempts   int
	LocalVideo string
}

// JobProcessor runs the ingestion steps for one job.
type JobProcessor interface {
	Process(ctx context.Context, j Job) (Outcome, error)
}

// Abandoner is implemented by processors that record jobs which never ran.
type Abandoner interface {
	Abandon(ctx context.Context, j Job)
}

// Manager is a long-lived, supervised pool that runs ingestion jobs in the
// service process.
type Manager struct {
	cfg            *config.Config
	logger         *slog.Logger
	jobs           sync.Map // job id -> *Job
	active         sync.Map // article id -> job id
	mu             sync.Mutex
	queue          chan *Job
	concurrencySem chan struct{}
	processor      JobProcessor
	wg             sync.WaitGroup
}

func NewManager(cfg *config.Config, processor JobProcessor, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:            cfg,
		logger:         logger,
		queue:          make(chan *Job, 100),
		concurrencySem: make(chan struct{}, cfg.MaxConcurrency),
		processor:      processor,
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.logger.Info("ingestion manager started", "concurrency", m.cfg.MaxConcurrency)
	m.wg.Add(1)
	go m.workerLoop(ctx)
}

// Wait blocks until the worker loop and all running jobs have returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// workerLoop pulls jobs from the queue and processes them.
func (m *Manager) workerLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("ingestion worker loop shutting down")
			m.drain()
			return
		case j := <-m.queue:
			select {
			case m.concurrencySem <- struct{}{}:
			case <-ctx.Done():
				m.abandon(j, "service shutting down")
				m.drain()
				return
			}
			m.wg.Add(1)
			go func(j *Job) {
				defer m.wg.Done()
				defer func() { <-m.concurrencySem }()
				m.processJob(ctx, j)
			}(j)
		}
	}
}

// drain abandons every job still waiting in the queue.
func (m *Manager) drain() {
	for {
		select {
		case j := <-m.queue:
			m.abandon(j, "service shutting down")
		default:
			return
		}
	}
}

// abandon cancels a job that has not started and lets the processor record
// the outcome on the article. It reports false when the job already left the
// queued state.
func (m *Manager) abandon(j *Job, reason string) bool {
	m.mu.Lock()
	if j.Status != StatusQueued {
		m.mu.Unlock()
		return false
	}
	j.Status = StatusCanceled
	j.Error = reason
	j.CompletedAt = time.Now()
	snapshot := *j
	m.mu.Unlock()
	m.release(j)

	m.logger.Info("queued job abandoned", "job_id", j.ID, "article_id", j.ArticleID, "reason", reason)
	if a, ok := m.processor.(Abandoner); ok {
		a.Abandon(context.Background(), snapshot)
	}
	return true
}

// processJob runs one job under its own timeout. The job gets exactly one
// dispatch; retries of individual steps are the processor's concern.
func (m *Manager) processJob(parentCtx context.Context, j *Job) {
	jobCtx, cancel := context.WithTimeout(parentCtx, m.cfg.JobTimeout)
	defer cancel()

	m.mu.Lock()
	if j.Status == StatusCanceled {
		m.mu.Unlock()
		m.logger.Info("job canceled before processing", "job_id", j.ID)
		m.release(j)
		return
	}
	j.cancelFunc = cancel
	j.Status = StatusProcessing
	j.StartedAt = time.Now()
	snapshot := *j
	m.mu.Unlock()

	m.logger.Info("processing ingestion job", "job_id", j.ID, "article_id", j.ArticleID, "video_id", j.VideoID)

	out, err := m.run(jobCtx, snapshot)
	m.mu.Lock()
	j.Attempts = out.Attempts
	j.LocalVideo = out.LocalVideo
	m.mu.Unlock()

	switch {
	case err == nil:
		m.logger.Info("ingestion job completed", "job_id", j.ID, "article_id", j.ArticleID)
		m.finish(j, StatusCompleted, "")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		m.logger.Warn("ingestion job canceled or timed out", "job_id", j.ID, "error", err)
		m.finish(j, StatusCanceled, "job was canceled or timed out")
	default:
		m.logger.Warn("ingestion job failed", "job_id", j.ID, "error", err)
		m.finish(j, StatusFailed, err.Error())
	}
}

func (m *Manager) run(ctx context.Context, j Job) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("ingestion job panicked", "job_id", j.ID, "panic", r)
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return m.processor.Process(ctx, j)
}

func (m *Manager) finish(j *Job, status Status, msg string) {
	m.mu.Lock()
	j.Status = status
	j.Error = msg
	j.CompletedAt = time.Now()
	j.cancelFunc = nil
	m.mu.Unlock()
	m.release(j)
}

func (m *Manager) release(j *Job) {
	m.active.CompareAndDelete(j.ArticleID, j.ID)
}

// Submit queues a job. At most one live job exists per article.
func (m *Manager) Submit(j *Job) (*Job, error) {
	j.ID = fmt.Sprintf("%s_%d", shortuuid.New(), time.Now().Unix())
	j.Status = StatusQueued
	j.CreatedAt = time.Now()

	if _, loaded := m.active.LoadOrStore(j.ArticleID, j.ID); loaded {
		return nil, ErrAlreadyQueued
	}

	m.jobs.Store(j.ID, j)
	select {
	case m.queue <- j:
	default:
		m.jobs.Delete(j.ID)
		m.active.Delete(j.ArticleID)
		return nil, ErrQueueFull
	}
	m.logger.Info("ingestion job queued", "job_id", j.ID, "article_id", j.ArticleID)
	return j, nil
}

// Get returns a snapshot of a job.
func (m *Manager) Get(jobID string) (Job, bool) {
	val, ok := m.jobs.Load(jobID)
	if !ok {
		return Job{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return *val.(*Job), true
}

// List returns snapshots of all known jobs.
func (m *Manager) List() []Job {
	var list []Job
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs.Range(func(key, value interface{}) bool {
		list = append(list, *value.(*Job))
		return true
	})
	return list
}

// Cancel stops a queued or running job.
func (m *Manager) Cancel(jobID string) error {
	val, ok := m.jobs.Load(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	j := val.(*Job)

	if m.abandon(j, "canceled while in queue") {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case j.done():
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, j.ID, j.Status)
	case j.cancelFunc != nil:
		j.cancelFunc()
		m.logger.Info("cancellation signal sent to running job", "job_id", j.ID)
	default:
		return fmt.Errorf("job %s is processing but has no cancellation handle", j.ID)
	}
	return nil
}
