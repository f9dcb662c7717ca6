package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ytblog/api"
	"ytblog/blog"
	"ytblog/downloader"
	"ytblog/ffmpeg"
	"ytblog/ingest"
	"ytblog/media"
	"ytblog/store"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the ingestion worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		dl, err := downloader.NewRunner(cfg, logger)
		if err != nil {
			return fmt.Errorf("initializing downloader: %w", err)
		}
		if !dl.Available() {
			logger.Warn("yt-dlp not found, videos will be linked instead of downloaded", "bin", cfg.YtDlpBin)
		}

		// thumbnails are optional
		var scaler ingest.ImageScaler
		if s, err := ffmpeg.NewScaler(cfg.FFBin, logger); err != nil {
			logger.Warn("ffmpeg not available, thumbnail variants disabled", "error", err)
		} else {
			scaler = s
		}

		disk := media.NewDisk(cfg.StorageDir, cfg.PublicURL)
		covers := &media.Covers{
			Fetcher: media.NewCoverFetcher(cfg.ThumbBaseURL, cfg.MaxCoverSize, cfg.CoverTimeout),
			Disk:    disk,
			Folder:  cfg.StorageFolder,
		}

		processor := ingest.NewProcessor(db, dl, covers, scaler, ingest.NewDBNotifier(db, logger), disk,
			ingest.Options{
				Folder:          cfg.StorageFolder,
				DownloadEnabled: cfg.DownloadEnabled,
				Retries:         cfg.DownloadRetries,
				Backoff:         cfg.DownloadBackoff,
				ThumbnailSizes:  cfg.ThumbnailSizes,
				DownloadTimeout: cfg.DownloadTimeout,
				FinalizeTimeout: cfg.FinalizeTimeout,
			}, logger)
		manager := ingest.NewManager(cfg, processor, logger)
		svc := blog.NewService(db, covers, manager, cfg.BaseURL, logger)

		router := api.SetupRouter(svc, manager, db, cfg, logger)
		srv := &http.Server{
			Addr:    ":" + cfg.Port,
			Handler: router,
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		manager.Start(ctx)

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", "port", cfg.Port, "prefix", cfg.RoutePrefix)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			return fmt.Errorf("listen: %w", err)
		}

		stop()
		logger.Info("shutting down gracefully, press Ctrl+C again to force")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		manager.Wait()

		logger.Info("server exiting")
		return nil
	},
}
