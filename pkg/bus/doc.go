/*
Package bus implements the in-process publish/subscribe event bus at the
heart of Relay.

The bus decouples event producers from consumers: game services publish
events without knowing who is listening, and subscribers declare interest by
category, event type, field filters and target scope. Each event's metadata
selects a delivery guarantee, so a single bus serves telemetry (fire and
forget) and critical game state (retried, deduplicated or ordered) at the
same time.

# Architecture

	┌────────────────────── EVENT BUS ─────────────────────────┐
	│                                                           │
	│  Publish(event)                                           │
	│       │                                                   │
	│  ┌────▼───────────────────────────────────────┐          │
	│  │              Admission                      │          │
	│  │  - Running check                            │          │
	│  │  - ID/timestamp stamping                    │          │
	│  │  - Envelope validation                      │          │
	│  │  - Size limit enforcement                   │          │
	│  └────┬───────────────────────────────────────┘          │
	│       │                                                   │
	│  ┌────▼───────────────────────────────────────┐          │
	│  │          Subscription Registry              │          │
	│  │  - category → type → filter → target match  │          │
	│  │  - indexed by subscription and subscriber   │          │
	│  └────┬───────────────────────────────────────┘          │
	│       │ matched entries                                   │
	│  ┌────▼───────────────────────────────────────┐          │
	│  │           Delivery Engine                   │          │
	│  │                                             │          │
	│  │  fire-and-forget ──► one async attempt      │          │
	│  │  at-least-once ────► retry with backoff     │          │
	│  │  exactly-once ─────► dedup set, one attempt │          │
	│  │  ordered ──────────► per-sub FIFO worker    │          │
	│  └────────────────────────────────────────────┘          │
	└───────────────────────────────────────────────────────────┘

# Delivery Guarantees

Fire-and-forget:
  - One asynchronous handler invocation
  - Failures are logged and counted, never retried
  - The publisher is never blocked by slow handlers

At-least-once:
  - Retries with exponential backoff (base * multiplier^attempt, capped)
  - Attempt budget and delays come from the retry configuration
  - Retries run against a copy of the event

Exactly-once:
  - A (subscription, event ID) seen-set suppresses duplicates
  - Entries expire after the event TTL (or the bus default)
  - Dedup is decided at publish time, not on handler success

Ordered:
  - One bounded FIFO queue and one worker goroutine per subscription
  - Each event finishes (including retries) before the next starts
  - A full queue drops its oldest entry rather than blocking the publisher

# Usage

Lifecycle:

	b := bus.New(cfg.Bus)
	if err := b.Initialize(); err != nil {
		return err
	}
	defer b.Shutdown()

Subscribing with filters:

	result, err := b.Subscribe(&bus.Subscription{
		SubscriberID: "matchmaker",
		Categories:   []event.Category{event.CategoryPlayerAction},
		EventTypes:   []string{"ready"},
		Filters: []bus.Filter{
			{Field: "data.queue", Operator: bus.OpEquals, Value: "ranked"},
		},
	}, func(ctx context.Context, ev *event.Event) error {
		return enqueue(ev)
	})

Publishing:

	_, err := b.Publish(event.New(event.CategoryGameState, "sync", state))

Convenience helpers:

	b.Emit(event.CategoryGameState, "sync", data, nil,
		bus.WithDeliveryMode(event.DeliveryOrdered))
	b.On("scoreboard", []event.Category{event.CategoryPlayerAction}, handler)
	b.OnEvent("moderation", "chat", handler)

# Subscription Matching

A subscription matches an event when every stage passes:

 1. Category: the event category is in the subscription's category list
 2. Event type: the list is empty or contains the event type
 3. Filters: every filter evaluates true (EQUALS, NOT_EQUALS, IN, CONTAINS
    over dotted field paths); a filter whose field does not resolve never
    matches
 4. Target scope: the subscription has no target scope, or the event
    addresses one of its targets

# Shutdown Semantics

Shutdown cancels the engine context, which stops retry sleeps, ordered
workers and the dedup sweeper, then waits up to the configured grace period
for in-flight deliveries. Publish and Subscribe return ErrNotRunning before
Initialize and after Shutdown. Both lifecycle calls are idempotent.

# Error Handling

Handler panics are recovered and converted into delivery errors so one
misbehaving subscriber cannot take the process down. Terminal delivery
failures feed the error rate reported by GetStatus and the Prometheus
delivery counters.

# Thread Safety

All exported methods are safe for concurrent use. The registry is guarded by
its own mutex; delivery state (ordered queues, dedup sets) is guarded by the
engine's mutex; counters are atomics.

# See Also

  - Package event for the envelope and delivery mode definitions
  - Package gateway for bridging connections onto the bus
  - Package store for journal-backed history replay
*/
package bus
