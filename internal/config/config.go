package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// OpenAI
	OpenAIAPIKey   string
	EmbeddingModel string
	ChatModel      string

	// Delivery
	SendGridAPIKey string
	FromEmail      string

	// Storage roots
	DataDir string

	// Worker pool
	MaxConcurrentJobs int
	HeartbeatInterval time.Duration

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobMaxAge time.Duration
}

func Load() Config {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8091"),

		APIKey: os.Getenv("DOCVAR_API_KEY"),

		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel: envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		ChatModel:      envOr("CHAT_MODEL", "gpt-4o"),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		FromEmail:      envOr("FROM_EMAIL", "noreply@localhost"),

		DataDir: envOr("DATA_DIR", "data"),

		MaxConcurrentJobs: envInt("MAX_CONCURRENT_JOBS", 2),
		HeartbeatInterval: envDuration("HEARTBEAT_INTERVAL", 10*time.Second),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB

		JobMaxAge: envDuration("JOB_MAX_AGE", 7*24*time.Hour),
	}

	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 2
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 10 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.JobMaxAge <= 0 {
		cfg.JobMaxAge = 7 * 24 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("DOCVAR_API_KEY is required")
	}
	return nil
}

// JobsDir is where per-job state records live.
func (c Config) JobsDir() string { return c.DataDir + "/jobs" }

// UploadsDir is where staged job directories live.
func (c Config) UploadsDir() string { return c.DataDir + "/uploads" }

// CacheDir is where document embedding caches live.
func (c Config) CacheDir() string { return c.DataDir + "/embeddings" }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
