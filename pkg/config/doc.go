/*
Package config defines the relayd configuration model.

Configuration is a single YAML document covering the daemon (listen
addresses, data directory, logging), the event bus (size limits, retry
policy, monitoring) and the gateway (connection capacity, auth deadline,
rate limits). Load starts from Default() so a partial file only overrides
what it names.

# Usage

	cfg := config.Default()

	cfg, err := config.Load("/etc/relay/relay.yaml")
	if err != nil {
		// unreadable file, YAML error or failed validation
	}

	b := bus.New(cfg.Bus)
	gw := gateway.New(cfg.Gateway, cfg.Auth, b, validator)

# File Format

	listenAddr: ":8420"
	metricsAddr: ":9420"
	dataDir: /var/lib/relay
	logLevel: info
	bus:
	  maxEventSizeBytes: 65536
	  enablePersistence: true
	  defaultRetry:
	    maxAttempts: 3
	    baseDelayMs: 100
	    backoffMultiplier: 2.0
	    maxDelayMs: 5000
	gateway:
	  maxConnections: 10000
	  authTimeoutMs: 10000
	  rateLimit:
	    maxMessages: 100
	    windowMs: 1000
	auth:
	  mode: jwt
	  jwtSecret: <key>

# Validation

Validate rejects configurations the daemon cannot run with: non-positive
event size or connection limits, negative retry attempts, a backoff
multiplier below one, a missing JWT secret in jwt mode, or an unknown auth
mode.

Durations are stored as integer milliseconds in YAML and exposed as
time.Duration through helper methods (DefaultTTL, ShutdownGrace,
AuthTimeout, Window, BaseDelay, MaxDelay, MetricsInterval).
*/
package config
