package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"ytblog/blog"
	"ytblog/ingest"

	"github.com/gin-gonic/gin"
)

// Jobs exposes the ingestion job records.
type Jobs interface {
	List() []ingest.Job
	Get(jobID string) (ingest.Job, bool)
	Cancel(jobID string) error
}

type Handler struct {
	svc    *blog.Service
	jobs   Jobs
	logger *slog.Logger
}

func NewHandler(svc *blog.Service, jobs Jobs, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		jobs:   jobs,
		logger: logger,
	}
}

// handleStore creates a draft article from a video.
func (h *Handler) handleStore(c *gin.Context) {
	var req blog.Submission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body", "details": err.Error()})
		return
	}

	res, err := h.svc.Submit(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	msg := "Draft article created."
	if req.AddToAttachments {
		msg = "Draft article created. Video download started."
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": msg,
		"blog_id": res.ArticleID,
		"url":     res.URL,
	})
}

// handleStatus reports the processing state of an article.
func (h *Handler) handleStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": blog.StateNotFound})
		return
	}

	st, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if st.Status == blog.StateNotFound {
		c.JSON(http.StatusNotFound, st)
		return
	}
	c.JSON(http.StatusOK, st)
}

// handleListCategories returns the category forest.
func (h *Handler) handleListCategories(c *gin.Context) {
	tree, err := h.svc.CategoryTree(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

// handleCreateCategory adds a category.
func (h *Handler) handleCreateCategory(c *gin.Context) {
	var req blog.NewCategory
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body", "details": err.Error()})
		return
	}

	cat, err := h.svc.CreateCategory(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Category created.", "category": cat})
}

// handleListJobs lists ingestion jobs, newest first.
func (h *Handler) handleListJobs(c *gin.Context) {
	jobs := h.jobs.List()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if jobs == nil {
		jobs = []ingest.Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

// handleGetJob returns one ingestion job.
func (h *Handler) handleGetJob(c *gin.Context) {
	j, ok := h.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, j)
}

// handleCancelJob stops a queued or running ingestion job. The article is
// marked failed and keeps the link to the video.
func (h *Handler) handleCancelJob(c *gin.Context) {
	err := h.jobs.Cancel(c.Param("id"))
	switch {
	case errors.Is(err, ingest.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Job not found"})
	case errors.Is(err, ingest.ErrJobFinished):
		c.JSON(http.StatusConflict, gin.H{"message": "Job already finished"})
	case err != nil:
		h.writeError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Job cancellation requested"})
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *blog.ValidationError
	var dup *blog.DuplicateError
	switch {
	case errors.As(err, &verr):
		fields := make(map[string][]string, len(verr.Fields))
		for field, m := range verr.Fields {
			fields[field] = []string{m}
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": firstMessage(verr), "errors": fields})
	case errors.As(err, &dup):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "This video is already saved as an article.",
			"blog_id": dup.ExistingID,
		})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
	}
}

// firstMessage picks the message of the alphabetically first field so the
// summary is stable.
func firstMessage(verr *blog.ValidationError) string {
	first := ""
	for field := range verr.Fields {
		if first == "" || field < first {
			first = field
		}
	}
	return verr.Fields[first]
}
