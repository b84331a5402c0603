// Package main runs the standalone timeline render worker.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/playback/config"
	"github.com/aura-webinar/playback/internal/app"
	"github.com/aura-webinar/playback/internal/metrics"
	"github.com/aura-webinar/playback/internal/timelines"
	"github.com/aura-webinar/playback/internal/worker"
	"github.com/aura-webinar/playback/pkg/database"
	"github.com/aura-webinar/playback/pkg/queue"
	"github.com/aura-webinar/playback/pkg/redis"
	"github.com/aura-webinar/playback/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Render.Concurrency)+2, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var uploader worker.Uploader
	if cfg.AWS.TimelinesBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TimelinesBucket:      cfg.AWS.TimelinesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		uploader = s3Client
	}

	tools := app.NewToolkit(cfg.Render, logger)
	if err := tools.Check(); err != nil {
		logger.Fatal("media tools", zap.Error(err))
	}

	m := metrics.New()
	rend := app.NewRenderer(cfg.Render, tools, m, logger)
	repo := timelines.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewRenderProcessor(repo, rend, uploader, jobQueue, cfg.Render.WorkDir, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	metricsSrv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", zap.String("port", cfg.Server.Port))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
}
