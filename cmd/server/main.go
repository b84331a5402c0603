// Package main runs the playback timeline HTTP API with an embedded render worker and graceful shutdown.
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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/playback/config"
	"github.com/aura-webinar/playback/internal/app"
	"github.com/aura-webinar/playback/internal/auth"
	"github.com/aura-webinar/playback/internal/metrics"
	"github.com/aura-webinar/playback/internal/middleware"
	"github.com/aura-webinar/playback/internal/timelines"
	"github.com/aura-webinar/playback/internal/worker"
	"github.com/aura-webinar/playback/pkg/database"
	"github.com/aura-webinar/playback/pkg/queue"
	"github.com/aura-webinar/playback/pkg/redis"
	"github.com/aura-webinar/playback/pkg/response"
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
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), 0, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Storage is optional; without a bucket rendered timelines stay on local disk.
	var (
		s3Client  *storage.S3
		presigner timelines.Presigner
		uploader  worker.Uploader
	)
	if cfg.AWS.TimelinesBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TimelinesBucket:      cfg.AWS.TimelinesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			presigner, uploader = s3Client, s3Client
		}
	}

	m := metrics.New()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	timelineRepo := timelines.NewRepository(pool)
	timelineHandler := timelines.NewHandler(timelineRepo, jobQueue, presigner, m, logger)

	tools := app.NewToolkit(cfg.Render, logger)
	if err := tools.Check(); err != nil {
		logger.Warn("media tools unavailable; renders will fail", zap.Error(err))
	}
	rend := app.NewRenderer(cfg.Render, tools, m, logger)
	processor := worker.NewRenderProcessor(timelineRepo, rend, uploader, jobQueue, cfg.Render.WorkDir, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if !rdb.Healthy(c.Request.Context()) {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		write := middleware.RequireRole(auth.RoleOperator, auth.RoleAdmin)

		api.POST("/timelines/plan", timelineHandler.Plan)
		api.POST("/timelines", write, timelineHandler.Create)
		api.GET("/timelines/:id", timelineHandler.Get)
		api.GET("/timelines/:id/download-url", timelineHandler.DownloadURL)
		api.GET("/recordings/:id/timelines", timelineHandler.ListByRecording)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		processor.Run(workerCtx)
	}()

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("render worker did not stop in time")
	}
	logger.Info("server stopped")
}
