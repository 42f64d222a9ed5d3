// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DataDir     string
	DefaultUser string

	// Offline cache.
	CacheDBPath  string
	CacheVersion string
	AssetOrigin  string // upstream origin fronted by the offline gateway; empty = serve the embedded shell directly

	// Worker.
	APIBase          string // base URL the sync queue replays relative item URLs against
	ReminderInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "8080")

	cfg := &Config{
		Port:             port,
		FrontendURL:      getEnv("FRONTEND_URL", ""),
		DataDir:          getEnv("DATA_DIR", "./data/users"),
		DefaultUser:      getEnv("DEFAULT_USER", "default-user"),
		CacheDBPath:      getEnv("CACHE_DB_PATH", "./data/cache.db"),
		CacheVersion:     getEnv("CACHE_VERSION", "dashboard-v1"),
		AssetOrigin:      getEnv("ASSET_ORIGIN", ""),
		APIBase:          getEnv("API_BASE", "http://localhost:"+port),
		ReminderInterval: getEnvDuration("REMINDER_INTERVAL", 24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR cannot be empty")
	}
	if c.DefaultUser == "" {
		return fmt.Errorf("DEFAULT_USER cannot be empty")
	}
	if c.CacheDBPath == "" {
		return fmt.Errorf("CACHE_DB_PATH cannot be empty")
	}
	if c.CacheVersion == "" {
		return fmt.Errorf("CACHE_VERSION cannot be empty")
	}
	if c.ReminderInterval <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
