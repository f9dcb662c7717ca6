package downloader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"ytblog/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTool writes an executable shell script standing in for yt-dlp.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func testRunner(t *testing.T, bin string) *Runner {
	t.Helper()
	r, err := NewRunner(&config.Config{YtDlpBin: bin}, discardLogger())
	require.NoError(t, err)
	r.skipResourceCheck = true
	return r
}

const writesOutput = `
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; shift; fi
  shift
done
echo "[download] 100%"
printf 'video' > "$out"
`

func TestArgs(t *testing.T) {
	args := Args("https://www.youtube.com/watch?v=abc123", "/data/blog/1/videos/trip.mp4", []string{"--limit-rate", "5M"})
	expected := []string{
		"https://www.youtube.com/watch?v=abc123",
		"--user-agent", UserAgent,
		"--referer", "https://www.youtube.com/",
		"--no-cache-dir",
		"--ignore-errors",
		"--no-check-certificates",
		"--extractor-args", "youtube:player_client=android",
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"-o", "/data/blog/1/videos/trip.mp4",
		"--no-playlist",
		"--no-mtime",
		"--limit-rate", "5M",
	}
	assert.Equal(t, expected, args)
}

func TestDownload(t *testing.T) {
	t.Run("success requires exit zero and the output file", func(t *testing.T) {
		r := testRunner(t, fakeTool(t, writesOutput))
		out := filepath.Join(t.TempDir(), "blog", "1", "videos", "trip.mp4")

		log, err := r.Download(context.Background(), "https://www.youtube.com/watch?v=abc123", out)
		require.NoError(t, err)
		assert.Contains(t, log, "[download] 100%")
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "video", string(data))
	})

	t.Run("clean exit without file is a failure", func(t *testing.T) {
		r := testRunner(t, fakeTool(t, "exit 0\n"))
		_, err := r.Download(context.Background(), "u", filepath.Join(t.TempDir(), "x.mp4"))
		assert.ErrorIs(t, err, ErrNoOutput)
	})

	t.Run("non-zero exit reports the last line", func(t *testing.T) {
		r := testRunner(t, fakeTool(t, "echo 'ERROR: Video unavailable' >&2\nexit 1\n"))
		_, err := r.Download(context.Background(), "u", filepath.Join(t.TempDir(), "x.mp4"))
		var exitErr *ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, "ERROR: Video unavailable", exitErr.LastLine)
	})

	t.Run("missing tool", func(t *testing.T) {
		r := testRunner(t, filepath.Join(t.TempDir(), "missing-yt-dlp"))
		assert.False(t, r.Available())
		_, err := r.Download(context.Background(), "u", filepath.Join(t.TempDir(), "x.mp4"))
		assert.ErrorIs(t, err, ErrToolMissing)
	})

	t.Run("context cancellation stops the process", func(t *testing.T) {
		r := testRunner(t, fakeTool(t, "sleep 5\n"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Download(ctx, "u", filepath.Join(t.TempDir(), "x.mp4"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewRunnerRejectsReservedArgs(t *testing.T) {
	_, err := NewRunner(&config.Config{YtDlpBin: "yt-dlp", YtDlpExtraArgs: "--exec 'rm -rf /'"}, discardLogger())
	assert.ErrorContains(t, err, "managed by the downloader")
}

func TestSplitArgs(t *testing.T) {
	args, err := SplitArgs(`--limit-rate 5M --sleep-interval "3"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"--limit-rate", "5M", "--sleep-interval", "3"}, args)

	args, err = SplitArgs("")
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestValidateExtraArgs(t *testing.T) {
	t.Run("plain flags pass", func(t *testing.T) {
		assert.NoError(t, ValidateExtraArgs([]string{"--limit-rate", "5M", "--proxy", "socks5://127.0.0.1:1080"}))
	})

	t.Run("output override", func(t *testing.T) {
		assert.ErrorContains(t, ValidateExtraArgs([]string{"--output=/etc/passwd"}), "managed by the downloader")
		assert.ErrorContains(t, ValidateExtraArgs([]string{"-o", "x"}), "managed by the downloader")
	})

	t.Run("shell metacharacters", func(t *testing.T) {
		err := ValidateExtraArgs([]string{"--proxy", "$(whoami)"})
		assert.ErrorContains(t, err, "disallowed character found in argument: $(whoami)")
	})
}
