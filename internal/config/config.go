package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds all process configuration, loaded once at startup and
// injected into the components that need it.
type Config struct {
	HTTPAddr  string
	Database  DatabaseConfig
	Redis     RedisConfig
	Extractor ExtractorConfig
	Match     MatchConfig
}

type DatabaseConfig struct {
	DSN     string // required
	Timeout time.Duration
}

type RedisConfig struct {
	Addr string
}

type ExtractorConfig struct {
	URL     string
	APIKey  string // required
	Model   string // embedding model identifier, e.g. Facenet
	Dim     int    // expected embedding dimensionality
	Timeout time.Duration
}

type MatchConfig struct {
	// Threshold is the maximum Euclidean distance at which two embeddings
	// are still considered the same person.
	Threshold float64
}

var (
	ErrMissingDatabaseDSN = errors.New("DATABASE_DSN not set")
	ErrMissingAPIKey      = errors.New("EXTRACTOR_API_KEY not set")
)

// Load reads configuration from the environment. The database DSN and the
// extractor API key are required secrets; everything else has a default.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr: envString("HTTP_ADDR", ":8080"),
		Database: DatabaseConfig{
			DSN:     os.Getenv("DATABASE_DSN"),
			Timeout: envDuration("STORE_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr: envString("REDIS_ADDR", "redis:6379"),
		},
		Extractor: ExtractorConfig{
			URL:     envString("EXTRACTOR_URL", "http://extractor:8000"),
			APIKey:  os.Getenv("EXTRACTOR_API_KEY"),
			Model:   envString("EXTRACTOR_MODEL", "Facenet"),
			Dim:     envInt("EMBEDDING_DIM", 128),
			Timeout: envDuration("EXTRACTOR_TIMEOUT", 5*time.Second),
		},
		Match: MatchConfig{
			Threshold: envFloat("MATCH_THRESHOLD", 0.6),
		},
	}

	if cfg.Database.DSN == "" {
		return nil, ErrMissingDatabaseDSN
	}
	if cfg.Extractor.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	return cfg, nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}
