// Package config provides configuration for the merge tooling. Values
// come from three layers, later layers winning: built-in defaults, an
// optional YAML config file, and environment variables with the
// NARRASSIST_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the merge tooling.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Cache   CacheConfig   `yaml:"cache"`
}

// BackendConfig configures the API server client.
type BackendConfig struct {
	// BaseURL is the API server root (default: http://localhost:8765).
	BaseURL string `yaml:"base_url"`

	// EventsURL is the websocket event stream
	// (default: ws://localhost:8765/ws/events).
	EventsURL string `yaml:"events_url"`

	// ProjectID scopes all calls to one project (default: 1).
	ProjectID int64 `yaml:"project_id"`

	// TimeoutSeconds is the per-request timeout (default: 10).
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// RequestsPerSecond and Burst set the client-side rate limit
	// (defaults: 10 and 5).
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// CacheConfig configures the entity snapshot cache.
type CacheConfig struct {
	// Engine selects the cache backend: sqlite or postgres
	// (default: sqlite).
	Engine string `yaml:"engine"`

	// Path is the SQLite database file (default: ./narrassist.db).
	Path string `yaml:"path"`

	// PostgresDSN is the connection string when Engine is postgres.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty and no default file exists), then
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		if _, err := os.Stat("narrassist.yaml"); err == nil {
			path = "narrassist.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Cache.Engine != "sqlite" && cfg.Cache.Engine != "postgres" {
		return nil, fmt.Errorf("config: unknown cache engine %q", cfg.Cache.Engine)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:           "http://localhost:8765",
			EventsURL:         "ws://localhost:8765/ws/events",
			ProjectID:         1,
			TimeoutSeconds:    10,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Cache: CacheConfig{
			Engine: "sqlite",
			Path:   "./narrassist.db",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Backend.BaseURL = getEnv("NARRASSIST_API_URL", cfg.Backend.BaseURL)
	cfg.Backend.EventsURL = getEnv("NARRASSIST_EVENTS_URL", cfg.Backend.EventsURL)
	cfg.Backend.ProjectID = getEnvInt64("NARRASSIST_PROJECT_ID", cfg.Backend.ProjectID)
	cfg.Backend.TimeoutSeconds = getEnvInt("NARRASSIST_TIMEOUT_SECONDS", cfg.Backend.TimeoutSeconds)
	cfg.Backend.RequestsPerSecond = getEnvFloat("NARRASSIST_REQUESTS_PER_SECOND", cfg.Backend.RequestsPerSecond)
	cfg.Backend.Burst = getEnvInt("NARRASSIST_BURST", cfg.Backend.Burst)

	cfg.Cache.Engine = getEnv("NARRASSIST_CACHE_ENGINE", cfg.Cache.Engine)
	cfg.Cache.Path = getEnv("NARRASSIST_CACHE_PATH", cfg.Cache.Path)
	cfg.Cache.PostgresDSN = getEnv("NARRASSIST_CACHE_POSTGRES_DSN", cfg.Cache.PostgresDSN)
}

// getEnv retrieves a string environment variable or returns the default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
