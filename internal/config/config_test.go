package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "BACKEND_URL", "DATABASE_URL", "DB_PATH", "REQUEST_TIMEOUT", "SCAN_RATE_PER_MINUTE"} {
		t.Setenv(key, "")
	}
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "./data/test.db")
	t.Setenv("BACKEND_URL", "http://127.0.0.1:9090")
	t.Setenv("REQUEST_TIMEOUT", "15")
	t.Setenv("SCAN_RATE_PER_MINUTE", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %q", cfg.Port)
	}
	if cfg.Timeout.Request != 15*time.Second {
		t.Errorf("Expected 15s request timeout, got %v", cfg.Timeout.Request)
	}
	if cfg.Scan.RatePerMinute != 12 {
		t.Errorf("Expected rate 12, got %d", cfg.Scan.RatePerMinute)
	}
	if cfg.Scan.RecordListLimit != 1000 {
		t.Errorf("Expected record list limit 1000, got %d", cfg.Scan.RecordListLimit)
	}
}

func TestLoad_DurationFormats(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "250ms")
	if got := getEnvDuration("REQUEST_TIMEOUT", time.Second); got != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", got)
	}
	t.Setenv("REQUEST_TIMEOUT", "soon")
	if got := getEnvDuration("REQUEST_TIMEOUT", time.Second); got != time.Second {
		t.Errorf("Expected fallback, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port:       "8080",
		DBPath:     "./data/x.db",
		BackendURL: "http://127.0.0.1:8080",
		Scan:       ScanConfig{RatePerMinute: 1, MaxImageBytes: 1, RecordListLimit: 1},
		Timeout:    TimeoutConfig{Request: time.Second, HealthCheck: time.Second},
		Retry:      RetryConfig{DatabaseMaxRetries: 1},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	noStore := valid
	noStore.DBPath = ""
	if err := noStore.Validate(); err == nil {
		t.Error("Expected error without any database configured")
	}

	pgOnly := noStore
	pgOnly.DatabaseURL = "postgres://localhost/fleetscan"
	if err := pgOnly.Validate(); err != nil {
		t.Errorf("Expected DATABASE_URL alone to be valid, got %v", err)
	}

	badRate := valid
	badRate.Scan.RatePerMinute = 0
	if err := badRate.Validate(); err == nil {
		t.Error("Expected error for zero scan rate")
	}
}

func TestIsDevelopment(t *testing.T) {
	if !(&Config{}).IsDevelopment() {
		t.Error("Expected empty frontend URL to be development")
	}
	if (&Config{FrontendURL: "https://fleet.example.com"}).IsDevelopment() {
		t.Error("Expected public frontend URL to be production")
	}
}
