/*
Package event defines the event envelope shared by the bus, the gateway and
the journal.

The event package is the vocabulary of Relay: every message that moves through
the system is an Event carrying a category, a type, an arbitrary JSON payload
and delivery metadata. The envelope is serialization-stable (camelCase JSON
field names) so the same shape flows over the websocket wire, through the bus
and into the bbolt journal.

# Architecture

	┌──────────────────── EVENT ENVELOPE ──────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Identity                       │          │
	│  │  - ID: UUID, assigned at creation           │          │
	│  │  - Timestamp: creation time                 │          │
	│  │  - Version: schema version ("1")            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Routing                        │          │
	│  │  - Category: coarse routing class           │          │
	│  │  - Type: fine-grained kind within category  │          │
	│  │  - SourceID: producing player or service    │          │
	│  │  - Targets: player/game/broadcast scoping   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Payload + Metadata             │          │
	│  │  - Data: free-form JSON object              │          │
	│  │  - Priority: low/normal/high/critical       │          │
	│  │  - DeliveryMode: delivery guarantee         │          │
	│  │  - TTLMs: dedup window override             │          │
	│  │  - Tags: free-form labels                   │          │
	│  └────────────────────────────────────────────┘          │
	└───────────────────────────────────────────────────────────┘

# Core Types

Category:
  - game-state: authoritative game world changes
  - player-action: player inputs (movement, actions, readiness)
  - user-notification: chat and user-facing messages
  - admin-action: operator commands
  - system-status: service health and operational reports

DeliveryMode:
  - fire-and-forget: one attempt, failures logged and dropped
  - at-least-once: retried with exponential backoff
  - exactly-once: deduplicated per subscription by event ID
  - ordered: per-subscription FIFO delivery

Target:
  - player:<id>: one player's connections
  - game:<id>: everyone in a game session
  - broadcast: everyone
  - An empty target list addresses everyone, like broadcast

# Usage

Creating and publishing an event:

	ev := event.New(event.CategoryPlayerAction, "move", map[string]any{
		"playerId": "p1",
		"x":        5,
		"y":        3,
	})
	ev.SourceID = "p1"
	ev.Targets = []event.Target{{Type: event.TargetGame, ID: "g1"}}
	ev.Metadata.DeliveryMode = event.DeliveryAtLeastOnce

Field lookup for subscription filters:

	v, ok := ev.Field("data.playerId")   // "p1", true
	v, ok = ev.Field("metadata.priority") // "normal", true
	v, ok = ev.Field("data.missing")      // nil, false

Target checks:

	ev.HasTarget(event.TargetPlayer, "p1")

# Validation

Validate rejects envelopes with an unknown category, a missing type, or an
unknown delivery mode. An empty delivery mode is valid and treated as
fire-and-forget by the bus. Validation happens at publish time; construction
via New always produces a valid envelope.

# Thread Safety

Event values are not internally synchronized. The bus treats published events
as immutable; retry paths operate on Clone() copies so a handler that mutates
its event cannot corrupt later attempts.

# See Also

  - Package bus for subscription matching and delivery
  - Package gateway for the wire message to event translation
  - Package store for the journaled representation
*/
package event
