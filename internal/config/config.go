// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	DatabaseURL string // PostgreSQL DSN; empty selects SQLite at DBPath
	BackendURL  string // base URL the kiosk orchestrators call
	Scan        ScanConfig
	Timeout     TimeoutConfig
	Retry       RetryConfig
}

// ScanConfig bounds scan traffic.
type ScanConfig struct {
	RatePerMinute   int
	MaxImageBytes   int64
	RecordListLimit int
}

// TimeoutConfig holds request timeouts.
type TimeoutConfig struct {
	Request     time.Duration
	HealthCheck time.Duration
}

// RetryConfig controls retries of SQLite writes that hit lock contention.
type RetryConfig struct {
	DatabaseMaxRetries     int
	DatabaseRetryBaseDelay time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "8080")

	cfg := &Config{
		Port:        port,
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/fleetscan.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		BackendURL:  getEnv("BACKEND_URL", "http://127.0.0.1:"+port),
		Scan: ScanConfig{
			RatePerMinute:   getEnvInt("SCAN_RATE_PER_MINUTE", 30),
			MaxImageBytes:   int64(getEnvInt("MAX_IMAGE_BYTES", 10<<20)),
			RecordListLimit: getEnvInt("RECORD_LIST_LIMIT", 1000),
		},
		Timeout: TimeoutConfig{
			Request:     getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		},
		Retry: RetryConfig{
			DatabaseMaxRetries:     getEnvInt("DB_MAX_RETRIES", 3),
			DatabaseRetryBaseDelay: getEnvDuration("DB_RETRY_BASE_DELAY", 50*time.Millisecond),
		},
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
	if c.DBPath == "" && c.DatabaseURL == "" {
		return fmt.Errorf("one of DB_PATH or DATABASE_URL must be set")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL cannot be empty")
	}
	if c.Scan.RatePerMinute <= 0 {
		return fmt.Errorf("SCAN_RATE_PER_MINUTE must be > 0")
	}
	if c.Scan.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be > 0")
	}
	if c.Scan.RecordListLimit <= 0 {
		return fmt.Errorf("RECORD_LIST_LIMIT must be > 0")
	}
	if c.Timeout.Request <= 0 || c.Timeout.HealthCheck <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}
	if c.Retry.DatabaseMaxRetries <= 0 {
		return fmt.Errorf("DB_MAX_RETRIES must be > 0")
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

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("15s") or plain seconds ("15").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
