package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_VAR", "hello")
	defer os.Unsetenv("TEST_VAR")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"${TEST_VAR:default}", "hello"},
		{"${UNSET_VAR:fallback}", "fallback"},
		{"${UNSET_VAR}", ""},
		{"no vars here", "no vars here"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
	}

	for _, tt := range tests {
		got := expandEnvVars(tt.input)
		if got != tt.expected {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadFile(t *testing.T) {
	// Create a temp YAML file
	tmpFile, err := os.CreateTemp("", "test-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	content := `
server:
  host: "0.0.0.0"
  port: 9999
`
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	var cfg Config
	if err := LoadFile(tmpFile.Name(), &cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
	}
}

func TestLoadFile_WithEnvVars(t *testing.T) {
	os.Setenv("TEST_PORT", "7777")
	defer os.Unsetenv("TEST_PORT")

	tmpFile, err := os.CreateTemp("", "test-config-env-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	content := `
server:
  host: "${TEST_HOST:127.0.0.1}"
  port: ${TEST_PORT}
`
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	var cfg Config
	if err := LoadFile(tmpFile.Name(), &cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1 (default), got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777, got %d", cfg.Server.Port)
	}
}

func writeConsoleConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoader_Load(t *testing.T) {
	os.Setenv("TEST_BACKEND_URL", "https://api.wanzo.test")
	defer os.Unsetenv("TEST_BACKEND_URL")

	dir := writeConsoleConfig(t, `
backend:
  base_url: "${TEST_BACKEND_URL}"
  timeout: 10s
auth:
  demo_mode: true
  demo_patterns: ["*@demo.wanzo.com"]
  provider:
    domain: "wanzo.eu.auth0.com"
    client_id: "client-1"
`)
	l := NewLoader(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := l.Config()
	if cfg.Backend.BaseURL != "https://api.wanzo.test" {
		t.Errorf("expected expanded base url, got %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 10*time.Second {
		t.Errorf("expected timeout 10s, got %s", cfg.Backend.Timeout)
	}
	if !cfg.Auth.Provider.Enabled() {
		t.Error("expected provider enabled")
	}
	// Unset keys keep their defaults.
	if cfg.Auth.RefreshPath != "/auth/refresh" || cfg.Auth.LoginRoute != "/auth/login" {
		t.Errorf("expected default auth routes, got %+v", cfg.Auth)
	}
	if cfg.Auth.Provider.Scope != "openid profile email" {
		t.Errorf("expected default scope, got %q", cfg.Auth.Provider.Scope)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoader_MissingFile(t *testing.T) {
	l := NewLoader(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := l.Load(); err == nil {
		t.Error("expected error for missing console.yaml")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"no backend", func(c *Config) { c.Backend.BaseURL = "" }, true},
		{"relative login route", func(c *Config) { c.Auth.LoginRoute = "auth/login" }, true},
		{"no cookie name", func(c *Config) { c.Auth.CookieName = "" }, true},
		{"demo without patterns", func(c *Config) { c.Auth.DemoMode = true }, true},
		{"demo with patterns", func(c *Config) {
			c.Auth.DemoMode = true
			c.Auth.DemoPatterns = []string{"demo@wanzo.com"}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "wanzo_admin", User: "wanzo", Password: "secret"}
	want := "postgres://wanzo:secret@db:5432/wanzo_admin?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestLoader_InvalidReloadKeepsPrevious(t *testing.T) {
	dir := writeConsoleConfig(t, "backend:\n  base_url: \"https://api.wanzo.test\"\n")
	l := NewLoader(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	os.WriteFile(filepath.Join(dir, FileName), []byte("auth:\n  login_route: \"relative\"\n"), 0o600)
	if err := l.Load(); err == nil {
		t.Fatal("expected validation error")
	}
	if got := l.Config().Backend.BaseURL; got != "https://api.wanzo.test" {
		t.Errorf("expected previous config kept, got base url %s", got)
	}
}

func TestLoader_WatchReloads(t *testing.T) {
	dir := writeConsoleConfig(t, "ratelimit:\n  requests_per_minute: 10\n")
	l := NewLoader(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	reloaded := make(chan struct{}, 1)
	l.OnReload(func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer l.Close()

	os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("ignored: true\n"), 0o600)
	os.WriteFile(filepath.Join(dir, FileName), []byte("ratelimit:\n  requests_per_minute: 25\n"), 0o600)

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	if got := l.Config().RateLimit.RequestsPerMinute; got != 25 {
		t.Errorf("expected reloaded rpm 25, got %d", got)
	}
}

func TestLoader_ConfigBeforeLoad(t *testing.T) {
	l := NewLoader(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if l.Config() != nil {
		t.Error("expected nil config before Load")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close without Watch: %v", err)
	}
}
