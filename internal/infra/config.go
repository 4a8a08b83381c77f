package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DataDir        string
	StorageBackend string

	MaxUploadBytes int64
	MaxClipSeconds int
	TargetFPS      int
	MaxWidth       int
	MaxHeight      int

	MaxConcurrentJobs int
	QueueCapacity     int
	JobTimeout        time.Duration
	FrameRetryMax     int
	FrameRetryBase    time.Duration

	EngineBaseURL string
	EngineAPIKey  string
	EngineModel   string

	FFmpegPath  string
	FFprobePath string

	DatabaseURL string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	CORSAllowedOrigins string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8000"),
		DataDir:        getEnv("DATA_DIR", "data"),
		StorageBackend: getEnv("STORAGE_BACKEND", "fs"),

		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 100*1024*1024),
		MaxClipSeconds: getEnvInt("MAX_CLIP_SECONDS", 60),
		TargetFPS:      getEnvInt("TARGET_FPS", 30),
		MaxWidth:       getEnvInt("MAX_WIDTH", 1920),
		MaxHeight:      getEnvInt("MAX_HEIGHT", 1080),

		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 1),
		QueueCapacity:     getEnvInt("QUEUE_CAPACITY", 16),
		JobTimeout:        time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 1800)),
		FrameRetryMax:     getEnvInt("FRAME_RETRY_MAX", 3),
		FrameRetryBase:    time.Millisecond * time.Duration(getEnvInt("FRAME_RETRY_BASE_MS", 500)),

		EngineBaseURL: os.Getenv("ENGINE_BASE_URL"),
		EngineAPIKey:  os.Getenv("ENGINE_API_KEY"),
		EngineModel:   getEnv("ENGINE_MODEL", "runwayml/stable-diffusion-v1-5"),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    getEnv("S3_BUCKET", "aura-artifacts"),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 120)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	if cfg.StorageBackend != "fs" && cfg.StorageBackend != "s3" {
		return nil, fmt.Errorf("STORAGE_BACKEND must be fs or s3, got %q", cfg.StorageBackend)
	}

	if cfg.StorageBackend == "s3" {
		if cfg.S3Endpoint == "" {
			return nil, fmt.Errorf("S3_ENDPOINT is required when STORAGE_BACKEND=s3")
		}
		if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return nil, fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when STORAGE_BACKEND=s3")
		}
	}

	if cfg.MaxConcurrentJobs < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}

	if cfg.QueueCapacity < 1 {
		return nil, fmt.Errorf("QUEUE_CAPACITY must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
