// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Backends the inference client can be built for.
const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendGemini   = "gemini"
)

// Config carries every runtime knob of the analysis service.
type Config struct {
	// Inference backend.
	Backend      string
	Model        string
	OllamaURL    string
	LlamaCppURL  string
	GoogleAPIKey string

	// Tiling.
	TileSize int
	Overlap  int

	// Concurrency and retries.
	Concurrency   int
	BatchSize     int
	RetryAttempts int
	RetryBase     time.Duration

	// Text recognition and caching.
	OCRLanguages []string
	RedisURL     string
	CacheTTL     time.Duration

	// Queue worker.
	QueueName        string
	QueueConcurrency int
}

// Load reads configuration from the environment, applying defaults for
// everything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Backend:          getEnvOrDefault("ANALYZER_BACKEND", BackendOllama),
		Model:            getEnvOrDefault("ANALYZER_MODEL", "minicpm-v4"),
		OllamaURL:        getEnvOrDefault("OLLAMA_URL", "http://localhost:11434"),
		LlamaCppURL:      getEnvOrDefault("LLAMACPP_URL", "http://localhost:8080"),
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		TileSize:         getEnvIntOrDefault("ANALYZER_TILE_SIZE", 1024),
		Overlap:          getEnvIntOrDefault("ANALYZER_OVERLAP", 128),
		Concurrency:      getEnvIntOrDefault("ANALYZER_CONCURRENCY", 4),
		BatchSize:        getEnvIntOrDefault("ANALYZER_BATCH_SIZE", 8),
		RetryAttempts:    getEnvIntOrDefault("ANALYZER_RETRY_ATTEMPTS", 3),
		RetryBase:        getEnvDurationOrDefault("ANALYZER_RETRY_BASE", 500*time.Millisecond),
		OCRLanguages:     []string{getEnvOrDefault("ANALYZER_OCR_LANG", "eng")},
		RedisURL:         os.Getenv("REDIS_URL"),
		CacheTTL:         getEnvDurationOrDefault("ANALYZER_CACHE_TTL", 24*time.Hour),
		QueueName:        getEnvOrDefault("ANALYZER_QUEUE", "drawings"),
		QueueConcurrency: getEnvIntOrDefault("ANALYZER_QUEUE_CONCURRENCY", 2),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama, BackendLlamaCpp, BackendGemini:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Backend == BackendGemini && c.GoogleAPIKey == "" {
		return fmt.Errorf("gemini backend requires GOOGLE_API_KEY")
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("tile size must be positive, got %d", c.TileSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.TileSize {
		return fmt.Errorf("overlap must be in [0, tile size), got %d", c.Overlap)
	}
	if c.Concurrency <= 0 || c.BatchSize <= 0 {
		return fmt.Errorf("concurrency and batch size must be positive")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must not be negative, got %d", c.RetryAttempts)
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
