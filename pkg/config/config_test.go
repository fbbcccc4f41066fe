package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() config should validate, got %v", err)
	}
	if cfg.ListenAddr == "" || cfg.MetricsAddr == "" {
		t.Error("Default() should set listen addresses")
	}
	if cfg.Bus.MaxEventSizeBytes != 64*1024 {
		t.Errorf("MaxEventSizeBytes = %d, want 65536", cfg.Bus.MaxEventSizeBytes)
	}
	if cfg.Bus.DefaultRetry.MaxAttempts != 3 {
		t.Errorf("DefaultRetry.MaxAttempts = %d, want 3", cfg.Bus.DefaultRetry.MaxAttempts)
	}
	if cfg.Gateway.RateLimit.MaxMessages != 100 {
		t.Errorf("RateLimit.MaxMessages = %d, want 100", cfg.Gateway.RateLimit.MaxMessages)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	data := `
listenAddr: ":9000"
logLevel: debug
bus:
  maxEventSizeBytes: 1024
  defaultRetry:
    maxAttempts: 5
gateway:
  maxConnections: 50
  rateLimit:
    maxMessages: 10
    windowMs: 500
auth:
  mode: jwt
  jwtSecret: hunter2
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want :9000", cfg.ListenAddr)
	}
	if cfg.Bus.MaxEventSizeBytes != 1024 {
		t.Errorf("MaxEventSizeBytes = %d, want 1024", cfg.Bus.MaxEventSizeBytes)
	}
	if cfg.Bus.DefaultRetry.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Bus.DefaultRetry.MaxAttempts)
	}
	if cfg.Gateway.MaxConnections != 50 {
		t.Errorf("MaxConnections = %d, want 50", cfg.Gateway.MaxConnections)
	}
	if cfg.Auth.Mode != "jwt" || cfg.Auth.JWTSecret != "hunter2" {
		t.Errorf("Auth = %+v, want jwt/hunter2", cfg.Auth)
	}

	// Unset fields keep defaults
	if cfg.MetricsAddr != Default().MetricsAddr {
		t.Errorf("MetricsAddr = %q, want default", cfg.MetricsAddr)
	}
	if cfg.Gateway.AuthTimeoutMs != Default().Gateway.AuthTimeoutMs {
		t.Errorf("AuthTimeoutMs = %d, want default", cfg.Gateway.AuthTimeoutMs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() should fail on a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(*Config) {}, false},
		{"zero event size", func(c *Config) { c.Bus.MaxEventSizeBytes = 0 }, true},
		{"negative retries", func(c *Config) { c.Bus.DefaultRetry.MaxAttempts = -1 }, true},
		{"multiplier below one", func(c *Config) { c.Bus.DefaultRetry.BackoffMultiplier = 0.5 }, true},
		{"zero max connections", func(c *Config) { c.Gateway.MaxConnections = 0 }, true},
		{"zero rate limit", func(c *Config) { c.Gateway.RateLimit.MaxMessages = 0 }, true},
		{"zero rate window", func(c *Config) { c.Gateway.RateLimit.WindowMs = 0 }, true},
		{"jwt without secret", func(c *Config) { c.Auth.Mode = "jwt" }, true},
		{"jwt with secret", func(c *Config) { c.Auth.Mode = "jwt"; c.Auth.JWTSecret = "k" }, false},
		{"unknown auth mode", func(c *Config) { c.Auth.Mode = "ldap" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{
		Bus: EventBus{
			DefaultTTLMs:    2_000,
			ShutdownGraceMs: 500,
			DefaultRetry:    Retry{BaseDelayMs: 100, MaxDelayMs: 3_000},
			Monitoring:      Monitoring{MetricsIntervalMs: 15_000},
		},
		Gateway: Gateway{
			AuthTimeoutMs: 10_000,
			RateLimit:     RateLimit{WindowMs: 1_000},
		},
	}

	if got := cfg.Bus.DefaultTTL(); got != 2*time.Second {
		t.Errorf("DefaultTTL() = %v, want 2s", got)
	}
	if got := cfg.Bus.ShutdownGrace(); got != 500*time.Millisecond {
		t.Errorf("ShutdownGrace() = %v, want 500ms", got)
	}
	if got := cfg.Bus.DefaultRetry.BaseDelay(); got != 100*time.Millisecond {
		t.Errorf("BaseDelay() = %v, want 100ms", got)
	}
	if got := cfg.Bus.DefaultRetry.MaxDelay(); got != 3*time.Second {
		t.Errorf("MaxDelay() = %v, want 3s", got)
	}
	if got := cfg.Bus.Monitoring.MetricsInterval(); got != 15*time.Second {
		t.Errorf("MetricsInterval() = %v, want 15s", got)
	}
	if got := cfg.Gateway.AuthTimeout(); got != 10*time.Second {
		t.Errorf("AuthTimeout() = %v, want 10s", got)
	}
	if got := cfg.Gateway.RateLimit.Window(); got != time.Second {
		t.Errorf("Window() = %v, want 1s", got)
	}
}
