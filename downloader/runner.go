package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"ytblog/config"
)

const (
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	Referer   = "https://www.youtube.com/"
	Format    = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
)

var (
	// ErrToolMissing means the yt-dlp executable could not be found.
	ErrToolMissing = errors.New("yt-dlp executable not found")
	// ErrNoOutput means yt-dlp exited cleanly but wrote no file.
	ErrNoOutput = errors.New("yt-dlp produced no output file")
)

// ExitError carries the last line yt-dlp printed before failing.
type ExitError struct {
	Err      error
	LastLine string
}

func (e *ExitError) Error() string {
	if e.LastLine != "" {
		return fmt.Sprintf("yt-dlp failed: %s", e.LastLine)
	}
	return fmt.Sprintf("yt-dlp failed: %v", e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Runner invokes yt-dlp as an isolated subprocess.
type Runner struct {
	bin        string
	extraArgs  []string
	thresholds Thresholds
	logger     *slog.Logger
	// skipResourceCheck is set by tests.
	skipResourceCheck bool
}

// NewRunner validates operator arguments. A missing binary is not an error
// here; it is reported per download so the worker can fall back.
func NewRunner(cfg *config.Config, logger *slog.Logger) (*Runner, error) {
	extra, err := SplitArgs(cfg.YtDlpExtraArgs)
	if err != nil {
		return nil, err
	}
	if err := ValidateExtraArgs(extra); err != nil {
		return nil, fmt.Errorf("invalid YTDLP_EXTRA_ARGS: %w", err)
	}
	return &Runner{
		bin:       cfg.YtDlpBin,
		extraArgs: extra,
		thresholds: Thresholds{
			IdleCPU:  cfg.ThrottleCPU,
			FreeMem:  cfg.ThrottleFreeMem,
			FreeDisk: cfg.ThrottleFreeDisk,
		},
		logger: logger,
	}, nil
}

// Available reports whether the yt-dlp executable can be resolved.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.bin)
	return err == nil
}

// Args builds the fixed yt-dlp argument contract for one download.
func Args(videoURL, outputPath string, extra []string) []string {
	args := []string{
		videoURL,
		"--user-agent", UserAgent,
		"--referer", Referer,
		"--no-cache-dir",
		"--ignore-errors",
		"--no-check-certificates",
		"--extractor-args", "youtube:player_client=android",
		"-f", Format,
		"-o", outputPath,
		"--no-playlist",
		"--no-mtime",
	}
	return append(args, extra...)
}

// Download fetches videoURL into outputPath. It succeeds only when yt-dlp
// exits with status zero and the output file exists. The returned string is
// the combined process output.
func (r *Runner) Download(ctx context.Context, videoURL, outputPath string) (string, error) {
	bin, err := exec.LookPath(r.bin)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolMissing, r.bin)
	}

	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating video folder: %w", err)
	}

	if !r.skipResourceCheck {
		if err := checkResources(r.thresholds, dir, r.logger); err != nil {
			return "", err
		}
	}

	cmd := exec.CommandContext(ctx, bin, Args(videoURL, outputPath, r.extraArgs)...)
	var outputBuf bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &outputBuf

	r.logger.Info("starting yt-dlp download", "url", videoURL, "output", outputPath)

	err = cmd.Run()
	outputLog := outputBuf.String()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outputLog, ctxErr
		}
		return outputLog, &ExitError{Err: err, LastLine: lastLine(outputLog)}
	}

	if info, statErr := os.Stat(outputPath); statErr != nil || info.IsDir() {
		return outputLog, ErrNoOutput
	}
	return outputLog, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
