package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/playback/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(-1))

	_, err = NewLogger("loud")
	require.Error(t, err)
}

func TestRendererOptions(t *testing.T) {
	opts := RendererOptions(config.RenderConfig{
		WorkDir:        "/work",
		FrameRate:      24,
		Concurrency:    3,
		MaxAttempts:    5,
		RetryBackoffMS: 250,
		FillerExt:      ".mp4",
		DeskshareCodec: "flashsv2",
	})
	require.Equal(t, "/work", opts.WorkDir)
	require.Equal(t, 24.0, opts.FrameRate)
	require.Equal(t, 3, opts.Concurrency)
	require.Equal(t, 5, opts.Retry.MaxAttempts)
	require.Equal(t, 250*time.Millisecond, opts.Retry.Backoff)
	require.Equal(t, "flashsv2", opts.DeskshareCodec)
}
