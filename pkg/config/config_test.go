package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "dev" || !cfg.App.IsDev() {
		t.Fatalf("expected default dev env, got %q", cfg.App.Env)
	}
	if !cfg.DB.IsSQLite() {
		t.Fatalf("expected sqlite default driver, got %q", cfg.DB.Driver)
	}
	if got := cfg.Sync.Interval; got != 6*time.Hour {
		t.Fatalf("expected 6h sync interval, got %v", got)
	}
	if cfg.API.BaseURL != "https://api.example.com" {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.Redis.Enabled() {
		t.Fatalf("redis should be disabled without url")
	}
	if cfg.Orders.RemoteSubmission {
		t.Fatalf("remote submission should default to off")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvSyncInterval, "90m")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvOrdersRemote, "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Sync.Interval != 90*time.Minute {
		t.Fatalf("expected 90m interval, got %v", cfg.Sync.Interval)
	}
	if !cfg.Redis.Enabled() {
		t.Fatalf("expected redis to be enabled")
	}
	if !cfg.Orders.RemoteSubmission {
		t.Fatalf("expected remote submission to be enabled")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAPIBaseURL); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAPIBaseURL, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvDBDriver, "mysql")

	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported driver to fail")
	}
}

func TestLoad_RejectsNonHTTPBaseURL(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvAPIBaseURL, "ftp://example.com")

	if _, err := Load(); err == nil {
		t.Fatal("expected non-http base url to fail")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAPIBaseURL, "https://api.example.com")
}
