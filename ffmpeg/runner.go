package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Scaler renders resized JPEG variants of an image with ffmpeg.
type Scaler struct {
	bin    string
	logger *slog.Logger
}

// NewScaler verifies the ffmpeg binary is reachable.
func NewScaler(bin string, logger *slog.Logger) (*Scaler, error) {
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found or not in PATH: %s", bin)
	}
	return &Scaler{bin: bin, logger: logger}, nil
}

// Args builds the ffmpeg invocation that scales src to width, keeping the aspect ratio.
func Args(src, dst string, width int) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-i", src,
		"-vf", "scale=" + strconv.Itoa(width) + ":-2",
		"-frames:v", "1",
		dst,
	}
}

// Scale writes a copy of src scaled to width pixels at dst.
func (s *Scaler) Scale(ctx context.Context, src, dst string, width int) error {
	if width <= 0 {
		return fmt.Errorf("invalid thumbnail width %d", width)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, s.bin, Args(src, dst, width)...)
	var outputBuf bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &outputBuf

	s.logger.Debug("scaling image", "cmd", strings.Join(cmd.Args, " "))

	if err := cmd.Run(); err != nil {
		// no partial thumbnails
		os.Remove(dst)
		return fmt.Errorf("ffmpeg execution failed: %w: %s", err, strings.TrimSpace(outputBuf.String()))
	}
	return nil
}
