package api

import (
	"log/slog"
	"net/http"
	"strings"

	"ytblog/blog"
	"ytblog/config"

	"github.com/gin-gonic/gin"
)

func SetupRouter(svc *blog.Service, jobs Jobs, users UserLookup, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	r := gin.Default()
	h := NewHandler(svc, jobs, logger)

	// covers and local videos
	if strings.HasPrefix(cfg.PublicURL, "/") && cfg.PublicURL != "/" && cfg.StorageDir != "" {
		r.Static(cfg.PublicURL, cfg.StorageDir)
	}

	g := r.Group(cfg.RoutePrefix)
	g.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := g.Group("")
	authed.Use(AuthMiddleware(users, logger))
	{
		authed.GET("/categories", h.handleListCategories)
		authed.POST("/categories", h.handleCreateCategory)
		authed.POST("/store", h.handleStore)
		authed.GET("/status/:id", h.handleStatus)
		authed.GET("/jobs", h.handleListJobs)
		authed.GET("/jobs/:id", h.handleGetJob)
		authed.POST("/jobs/:id/cancel", h.handleCancelJob)
	}
	return r
}
