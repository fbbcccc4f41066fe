/*
Package log provides structured logging for Relay using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("bus")                     │          │
	│  │  - WithConnectionID("conn-abc123")          │          │
	│  │  - WithSubscriptionID("sub-xyz")            │          │
	│  │  - WithEventID("ev-def456")                 │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                             │          │
	│  │  JSON Format:                               │          │
	│  │  {                                          │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "gateway",                  │          │
	│  │    "time": "2026-08-27T10:30:00Z",          │          │
	│  │    "message": "connection authenticated"    │          │
	│  │  }                                          │          │
	│  │                                             │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF connection authenticated component=gateway │
	│  └────────────────────────────────────────────┘          │
	└───────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all Relay packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithConnectionID: Add connection ID context
  - WithSubscriptionID: Add subscription ID context
  - WithEventID: Add event ID context

# Usage

Initializing the Logger:

	import "github.com/emberworks/relay/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("Event bus initialized")
	log.Warn("High queue depth detected")
	log.Error("Failed to open journal")

Structured Logging:

	log.Logger.Info().
		Str("connection_id", "conn-123").
		Str("user_id", "player-7").
		Msg("connection authenticated")

	log.Logger.Error().
		Err(err).
		Str("subscription_id", "sub-abc").
		Msg("delivery failed")

Component Loggers:

	busLog := log.WithComponent("bus")
	busLog.Info().Msg("event bus initialized")
	busLog.Debug().Str("event_id", ev.ID).Msg("event published")

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() and include the relevant IDs

Don't:
  - Log tokens or other sensitive data
  - Use Debug level in production
  - Log per-event in hot delivery paths (gate behind tracing config)
  - Concatenate strings (use .Str, .Int)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log
