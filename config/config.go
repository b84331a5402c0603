package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Render   RenderConfig
	LogLevel string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/playback?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the bucket rendered timelines go to.
// An empty TimelinesBucket keeps outputs on local disk.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	TimelinesBucket      string
	PresignExpireMinutes int
}

// RenderConfig holds the media toolchain and renderer settings.
type RenderConfig struct {
	WorkDir        string // empty = os.TempDir()
	FFmpegPath     string
	FFprobePath    string
	ConvertPath    string
	FrameRate      float64
	CanvasColor    string
	Concurrency    int
	MaxAttempts    int
	RetryBackoffMS int
	FillerExt      string
	DeskshareCodec string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "playback"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			TimelinesBucket:      getEnv("AWS_S3_TIMELINES_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Render: RenderConfig{
			WorkDir:        getEnv("RENDER_WORK_DIR", ""),
			FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:    getEnv("FFPROBE_PATH", "ffprobe"),
			ConvertPath:    getEnv("CONVERT_PATH", "convert"),
			FrameRate:      getEnvFloat("RENDER_FRAME_RATE", 15),
			CanvasColor:    getEnv("RENDER_CANVAS_COLOR", "white"),
			Concurrency:    getEnvInt("RENDER_CONCURRENCY", 4),
			MaxAttempts:    getEnvInt("RENDER_MAX_ATTEMPTS", 3),
			RetryBackoffMS: getEnvInt("RENDER_RETRY_BACKOFF_MS", 500),
			FillerExt:      normalizeExt(getEnv("RENDER_FILLER_EXT", ".flv")),
			DeskshareCodec: getEnv("RENDER_DESKSHARE_CODEC", "flashsv"),
		},
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.Render.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("RENDER_FRAME_RATE must be positive, got %v", c.Render.FrameRate))
	}
	if c.Render.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("RENDER_CONCURRENCY must be positive, got %d", c.Render.Concurrency))
	}
	if c.Render.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("RENDER_MAX_ATTEMPTS must be positive, got %d", c.Render.MaxAttempts))
	}
	if c.Render.RetryBackoffMS < 0 {
		errs = append(errs, fmt.Errorf("RENDER_RETRY_BACKOFF_MS must not be negative, got %d", c.Render.RetryBackoffMS))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}

func normalizeExt(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
