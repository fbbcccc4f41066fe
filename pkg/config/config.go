package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level relayd configuration
type Config struct {
	ListenAddr  string        `yaml:"listenAddr"`
	MetricsAddr string        `yaml:"metricsAddr"`
	DataDir     string        `yaml:"dataDir"`
	LogLevel    string        `yaml:"logLevel"`
	LogJSON     bool          `yaml:"logJson"`
	Bus         EventBus      `yaml:"bus"`
	Gateway     Gateway       `yaml:"gateway"`
	Auth        Auth          `yaml:"auth"`
}

// EventBus configures the event bus
type EventBus struct {
	DefaultTTLMs      int64      `yaml:"defaultTtlMs"`
	MaxEventSizeBytes int        `yaml:"maxEventSizeBytes"`
	EnablePersistence bool       `yaml:"enablePersistence"`
	EnableTracing     bool       `yaml:"enableTracing"`
	ShutdownGraceMs   int64      `yaml:"shutdownGraceMs"`
	DefaultRetry      Retry      `yaml:"defaultRetry"`
	Monitoring        Monitoring `yaml:"monitoring"`
}

// Retry controls at-least-once backoff behavior
type Retry struct {
	MaxAttempts       int     `yaml:"maxAttempts"`
	BaseDelayMs       int64   `yaml:"baseDelayMs"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
	MaxDelayMs        int64   `yaml:"maxDelayMs"`
}

// Monitoring controls metrics sampling and alert thresholds
type Monitoring struct {
	EnableMetrics     bool            `yaml:"enableMetrics"`
	MetricsIntervalMs int64           `yaml:"metricsIntervalMs"`
	EnableSampling    bool            `yaml:"enableSampling"`
	SamplingRate      float64         `yaml:"samplingRate"`
	AlertThresholds   AlertThresholds `yaml:"alertThresholds"`
}

// AlertThresholds are the levels at which status reporting flags degradation
type AlertThresholds struct {
	MaxLatencyMs   int64   `yaml:"maxLatencyMs"`
	MaxErrorRate   float64 `yaml:"maxErrorRate"`
	MaxQueueDepth  int     `yaml:"maxQueueDepth"`
	MaxMemoryBytes int64   `yaml:"maxMemoryBytes"`
}

// Gateway configures the connection gateway
type Gateway struct {
	MaxConnections int       `yaml:"maxConnections"`
	AuthTimeoutMs  int64     `yaml:"authTimeoutMs"`
	RateLimit      RateLimit `yaml:"rateLimit"`
}

// RateLimit bounds inbound messages per connection per window
type RateLimit struct {
	MaxMessages int   `yaml:"maxMessages"`
	WindowMs    int64 `yaml:"windowMs"`
}

// Auth configures token validation
type Auth struct {
	// Mode selects the validator: "jwt" or "static"
	Mode string `yaml:"mode"`
	// JWTSecret is the HMAC key for jwt mode
	JWTSecret string `yaml:"jwtSecret"`
	// MaxFailedAttempts force-closes a connection after N failed
	// authentications; 0 allows retries until the auth deadline
	MaxFailedAttempts int `yaml:"maxFailedAttempts"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		ListenAddr:  ":8420",
		MetricsAddr: ":9420",
		DataDir:     "/var/lib/relay",
		LogLevel:    "info",
		Bus: EventBus{
			DefaultTTLMs:      300_000,
			MaxEventSizeBytes: 64 * 1024,
			ShutdownGraceMs:   5_000,
			DefaultRetry: Retry{
				MaxAttempts:       3,
				BaseDelayMs:       100,
				BackoffMultiplier: 2.0,
				MaxDelayMs:        5_000,
			},
			Monitoring: Monitoring{
				EnableMetrics:     true,
				MetricsIntervalMs: 15_000,
				SamplingRate:      1.0,
				AlertThresholds: AlertThresholds{
					MaxLatencyMs:   1_000,
					MaxErrorRate:   0.05,
					MaxQueueDepth:  10_000,
					MaxMemoryBytes: 512 * 1024 * 1024,
				},
			},
		},
		Gateway: Gateway{
			MaxConnections: 10_000,
			AuthTimeoutMs:  10_000,
			RateLimit: RateLimit{
				MaxMessages: 100,
				WindowMs:    1_000,
			},
		},
		Auth: Auth{
			Mode: "static",
		},
	}
}

// Load reads a YAML config file and applies defaults for unset fields
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with
func (c *Config) Validate() error {
	if c.Bus.MaxEventSizeBytes <= 0 {
		return fmt.Errorf("bus.maxEventSizeBytes must be positive")
	}
	if c.Bus.DefaultRetry.MaxAttempts < 0 {
		return fmt.Errorf("bus.defaultRetry.maxAttempts must not be negative")
	}
	if c.Bus.DefaultRetry.BackoffMultiplier < 1 {
		return fmt.Errorf("bus.defaultRetry.backoffMultiplier must be >= 1")
	}
	if c.Gateway.MaxConnections <= 0 {
		return fmt.Errorf("gateway.maxConnections must be positive")
	}
	if c.Gateway.RateLimit.MaxMessages <= 0 || c.Gateway.RateLimit.WindowMs <= 0 {
		return fmt.Errorf("gateway.rateLimit requires positive maxMessages and windowMs")
	}
	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwtSecret is required in jwt mode")
		}
	case "static", "":
	default:
		return fmt.Errorf("unknown auth.mode %q", c.Auth.Mode)
	}
	return nil
}

// DefaultTTL returns the bus default TTL as a duration
func (c *EventBus) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLMs) * time.Millisecond
}

// ShutdownGrace returns the shutdown grace period as a duration
func (c *EventBus) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceMs) * time.Millisecond
}

// AuthTimeout returns the gateway auth deadline as a duration
func (c *Gateway) AuthTimeout() time.Duration {
	return time.Duration(c.AuthTimeoutMs) * time.Millisecond
}

// Window returns the rate limit window as a duration
func (r *RateLimit) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

// BaseDelay returns the initial retry delay as a duration
func (r *Retry) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the retry delay cap as a duration
func (r *Retry) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// MetricsInterval returns the collector sampling interval as a duration
func (m *Monitoring) MetricsInterval() time.Duration {
	return time.Duration(m.MetricsIntervalMs) * time.Millisecond
}
