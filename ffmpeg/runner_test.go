package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgs(t *testing.T) {
	args := Args("/in/cover.jpg", "/out/trip_300.jpg", 300)
	expected := []string{"-y", "-loglevel", "error", "-i", "/in/cover.jpg", "-vf", "scale=300:-2", "-frames:v", "1", "/out/trip_300.jpg"}
	assert.Equal(t, expected, args)
}

func TestNewScalerMissingBinary(t *testing.T) {
	_, err := NewScaler("definitely-not-ffmpeg-binary", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg binary not found")
}
