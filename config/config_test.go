// ytblog/config/config_test.go
package config_test

import (
	"testing"
	"time"

	"ytblog/config"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "/api/youtube", cfg.RoutePrefix)
		assert.Equal(t, 1, cfg.MaxConcurrency)
		assert.Equal(t, true, cfg.DownloadEnabled)
		assert.Equal(t, "yt-dlp", cfg.YtDlpBin)
		assert.Equal(t, 2*time.Hour, cfg.JobTimeout)
		assert.Equal(t, time.Hour+58*time.Minute+20*time.Second, cfg.DownloadTimeout)
		assert.Equal(t, time.Minute, cfg.FinalizeTimeout)
		assert.Equal(t, 2, cfg.DownloadRetries)
		assert.Equal(t, int64(10*1024*1024), cfg.MaxCoverSize)
		assert.Equal(t, []int{150, 300, 600}, cfg.ThumbnailSizes)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		t.Setenv("YTBLOG_PORT", "9999")
		t.Setenv("YTBLOG_MAX_CONCURRENCY", "3")
		t.Setenv("YTBLOG_DOWNLOAD_ENABLED", "false")
		t.Setenv("YTBLOG_DOWNLOAD_TIMEOUT", "15m")
		t.Setenv("YTBLOG_MAX_COVER_SIZE", "2MB")
		t.Setenv("YTBLOG_THUMBNAIL_SIZES", "100,200")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "9999", cfg.Port)
		assert.Equal(t, 3, cfg.MaxConcurrency)
		assert.Equal(t, false, cfg.DownloadEnabled)
		assert.Equal(t, 15*time.Minute, cfg.DownloadTimeout)
		assert.Equal(t, int64(2*1024*1024), cfg.MaxCoverSize)
		assert.Equal(t, []int{100, 200}, cfg.ThumbnailSizes)
	})

	t.Run("download timeout must leave room inside the job timeout", func(t *testing.T) {
		t.Setenv("YTBLOG_JOB_TIMEOUT", "30m")
		t.Setenv("YTBLOG_DOWNLOAD_TIMEOUT", "30m")

		_, err := config.Load()
		assert.ErrorContains(t, err, "must be shorter than JOB_TIMEOUT")
	})
}
