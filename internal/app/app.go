// Package app holds the wiring shared by the server, worker and CLI binaries.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/playback/config"
	"github.com/aura-webinar/playback/internal/media"
	"github.com/aura-webinar/playback/internal/metrics"
	"github.com/aura-webinar/playback/internal/renderer"
)

// NewLogger builds the production zap logger at level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// NewToolkit builds the media toolkit from render settings.
func NewToolkit(cfg config.RenderConfig, logger *zap.Logger) *media.Toolkit {
	return media.NewToolkit(media.Options{
		FFmpegPath:     cfg.FFmpegPath,
		FFprobePath:    cfg.FFprobePath,
		ConvertPath:    cfg.ConvertPath,
		DeskshareCodec: cfg.DeskshareCodec,
	}, nil, logger.Named("media"))
}

// NewRenderer builds a renderer over tools from render settings.
func NewRenderer(cfg config.RenderConfig, tools renderer.Tools, m *metrics.Metrics, logger *zap.Logger) *renderer.Renderer {
	return renderer.New(tools, RendererOptions(cfg), logger.Named("renderer"), m)
}

// RendererOptions maps render settings to renderer options.
func RendererOptions(cfg config.RenderConfig) renderer.Options {
	return renderer.Options{
		WorkDir:        cfg.WorkDir,
		FrameRate:      cfg.FrameRate,
		CanvasColor:    cfg.CanvasColor,
		Concurrency:    cfg.Concurrency,
		FillerExt:      cfg.FillerExt,
		DeskshareCodec: cfg.DeskshareCodec,
		Retry: media.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		},
	}
}
