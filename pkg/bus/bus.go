package bus

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emberworks/relay/pkg/config"
	"github.com/emberworks/relay/pkg/event"
	"github.com/emberworks/relay/pkg/log"
	"github.com/emberworks/relay/pkg/metrics"
)

var (
	// ErrNotRunning is returned by publish/subscribe when the bus has not
	// been initialized or has been shut down
	ErrNotRunning = errors.New("bus not running")
	// ErrEventTooLarge is returned when a serialized event exceeds the
	// configured size limit
	ErrEventTooLarge = errors.New("event exceeds maximum size")
	// ErrInvalidEvent is returned for malformed envelopes
	ErrInvalidEvent = errors.New("invalid event")
	// ErrInvalidSubscription is returned for malformed subscriptions
	ErrInvalidSubscription = errors.New("invalid subscription")
)

// HistoryProvider supplies recent events for subscriptions that request
// history replay. The bbolt journal implements this when persistence is on.
type HistoryProvider interface {
	Recent(categories []event.Category, limit int) ([]*event.Event, error)
}

// PublishResult reports the outcome of an accepted publish. Success means
// the event was accepted and dispatched; it does not imply every handler
// eventually succeeded.
type PublishResult struct {
	Success        bool   `json:"success"`
	EventID        string `json:"eventId"`
	TargetsReached int    `json:"targetsReached"`
}

// SubscribeResult reports the outcome of a subscribe call
type SubscribeResult struct {
	Success        bool          `json:"success"`
	SubscriptionID string        `json:"subscriptionId"`
	Subscription   *Subscription `json:"subscription"`
}

// Status is a point-in-time snapshot of bus health. All fields are defined
// (zeroed) even when the bus is not running.
type Status struct {
	Running             bool    `json:"running"`
	ActiveSubscriptions int     `json:"activeSubscriptions"`
	EventsPerSecond     float64 `json:"eventsPerSecond"`
	QueueDepth          int     `json:"queueDepth"`
	MemoryUsage         uint64  `json:"memoryUsage"`
	ErrorRate           float64 `json:"errorRate"`
}

// Bus is the in-process event broker: it owns the subscription registry and
// the delivery engine for its running lifetime. Construct one per process
// (or per test) and inject it; there is no package-level instance.
type Bus struct {
	cfg    config.EventBus
	logger zerolog.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	registry *registry
	engine   *deliveryEngine
	history  HistoryProvider

	rateMu          sync.Mutex
	rateWindowStart time.Time
	rateCount       int
	lastRate        float64
}

// New constructs a bus in the stopped state
func New(cfg config.EventBus) *Bus {
	return &Bus{
		cfg:      cfg,
		logger:   log.WithComponent("bus"),
		registry: newRegistry(),
	}
}

// SetHistoryProvider wires the journal used for IncludeHistory replay.
// Must be called before Initialize.
func (b *Bus) SetHistoryProvider(h HistoryProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = h
}

// Initialize starts the bus. Calling it on a running bus is a no-op success.
func (b *Bus) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.engine = newDeliveryEngine(ctx, b.cfg.DefaultRetry, b.logger)
	b.running = true
	b.rateWindowStart = time.Now()
	b.rateCount = 0

	b.logger.Info().
		Int("max_event_size", b.cfg.MaxEventSizeBytes).
		Bool("persistence", b.cfg.EnablePersistence).
		Msg("event bus initialized")
	return nil
}

// Shutdown stops the bus: rejects further publish/subscribe, cancels retry
// timers and ordered workers, and waits a bounded grace period for in-flight
// deliveries. Idempotent.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	cancel := b.cancel
	engine := b.engine
	b.mu.Unlock()

	cancel()
	engine.drain(b.cfg.ShutdownGrace())
	b.registry.clear()
	metrics.ActiveSubscriptions.Set(0)

	b.logger.Info().Msg("event bus stopped")
}

// Publish validates the event, matches it against active subscriptions and
// dispatches each match through the delivery engine. The returned result is
// nil exactly when the error is non-nil.
func (b *Bus) Publish(ev *event.Event) (*PublishResult, error) {
	b.mu.Lock()
	running := b.running
	engine := b.engine
	b.mu.Unlock()

	if !running {
		metrics.EventsRejected.WithLabelValues("not_running").Inc()
		return nil, ErrNotRunning
	}

	if ev == nil {
		metrics.EventsRejected.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if err := ev.Validate(); err != nil {
		metrics.EventsRejected.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	raw, err := ev.Marshal()
	if err != nil {
		metrics.EventsRejected.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if b.cfg.MaxEventSizeBytes > 0 && len(raw) > b.cfg.MaxEventSizeBytes {
		metrics.EventsRejected.WithLabelValues("too_large").Inc()
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrEventTooLarge, len(raw), b.cfg.MaxEventSizeBytes)
	}

	matched := b.registry.match(ev)
	for _, en := range matched {
		engine.dispatch(en, ev, b.cfg.DefaultTTL())
	}

	b.recordPublish()
	metrics.EventsPublished.WithLabelValues(string(ev.Category)).Inc()

	if b.cfg.EnableTracing {
		b.logger.Debug().
			Str("event_id", ev.ID).
			Str("category", string(ev.Category)).
			Str("type", ev.Type).
			Int("matched", len(matched)).
			Msg("event published")
	}

	return &PublishResult{
		Success:        true,
		EventID:        ev.ID,
		TargetsReached: len(matched),
	}, nil
}

// Subscribe registers a subscription and its handler. The subscription ID
// is generated when absent.
func (b *Bus) Subscribe(sub *Subscription, handler Handler) (*SubscribeResult, error) {
	b.mu.Lock()
	running := b.running
	history := b.history
	engine := b.engine
	b.mu.Unlock()

	if !running {
		return nil, ErrNotRunning
	}
	if sub == nil || handler == nil {
		return nil, fmt.Errorf("%w: subscription and handler are required", ErrInvalidSubscription)
	}
	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubscription, err)
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	b.registry.add(sub, handler)
	metrics.ActiveSubscriptions.Set(float64(b.registry.count()))

	if sub.Options.IncludeHistory && history != nil {
		b.replayHistory(engine, sub, handler, history)
	}

	return &SubscribeResult{
		Success:        true,
		SubscriptionID: sub.ID,
		Subscription:   sub,
	}, nil
}

// replayHistory feeds recent matching journal events to a new subscription
// as single-attempt deliveries.
func (b *Bus) replayHistory(engine *deliveryEngine, sub *Subscription, handler Handler, history HistoryProvider) {
	limit := sub.Options.MaxBufferSize
	if limit <= 0 {
		limit = defaultOrderedQueueSize
	}
	past, err := history.Recent(sub.Categories, limit)
	if err != nil {
		b.logger.Warn().Err(err).Str("subscription_id", sub.ID).Msg("history replay failed")
		return
	}
	en := &entry{sub: sub, handler: handler}
	engine.async(func() {
		for _, ev := range past {
			if sub.Matches(ev) {
				engine.attemptOnce(en, ev, event.DeliveryFireAndForget)
			}
		}
	})
}

// Unsubscribe removes a subscription. Unknown IDs are a no-op success.
func (b *Bus) Unsubscribe(subscriptionID string) {
	if b.registry.remove(subscriptionID) {
		b.mu.Lock()
		engine := b.engine
		b.mu.Unlock()
		if engine != nil {
			engine.removeSubscription(subscriptionID)
		}
	}
	metrics.ActiveSubscriptions.Set(float64(b.registry.count()))
}

// UnsubscribeAll removes every subscription owned by a subscriber.
// Unknown subscribers are a no-op success.
func (b *Bus) UnsubscribeAll(subscriberID string) {
	removed := b.registry.removeAll(subscriberID)
	if len(removed) > 0 {
		b.mu.Lock()
		engine := b.engine
		b.mu.Unlock()
		if engine != nil {
			for _, id := range removed {
				engine.removeSubscription(id)
			}
		}
	}
	metrics.ActiveSubscriptions.Set(float64(b.registry.count()))
}

// Emit builds an envelope and publishes it. Sugar over Publish.
func (b *Bus) Emit(category event.Category, eventType string, data map[string]any, targets []event.Target, opts ...func(*event.Event)) (*PublishResult, error) {
	ev := event.New(category, eventType, data)
	ev.Targets = targets
	for _, opt := range opts {
		opt(ev)
	}
	return b.Publish(ev)
}

// WithDeliveryMode sets the delivery mode on an emitted event
func WithDeliveryMode(mode event.DeliveryMode) func(*event.Event) {
	return func(ev *event.Event) {
		ev.Metadata.DeliveryMode = mode
	}
}

// WithPriority sets the priority on an emitted event
func WithPriority(p event.Priority) func(*event.Event) {
	return func(ev *event.Event) {
		ev.Metadata.Priority = p
	}
}

// WithSource sets the source ID on an emitted event
func WithSource(sourceID string) func(*event.Event) {
	return func(ev *event.Event) {
		ev.SourceID = sourceID
	}
}

// On registers a handler for one or more categories. Sugar over Subscribe.
func (b *Bus) On(subscriberID string, categories []event.Category, handler Handler, filters ...Filter) (*SubscribeResult, error) {
	return b.Subscribe(&Subscription{
		SubscriberID: subscriberID,
		Categories:   categories,
		Filters:      filters,
	}, handler)
}

// OnEvent registers a handler for a single event type in any category.
// Sugar over Subscribe.
func (b *Bus) OnEvent(subscriberID string, eventType string, handler Handler) (*SubscribeResult, error) {
	return b.Subscribe(&Subscription{
		SubscriberID: subscriberID,
		Categories: []event.Category{
			event.CategoryGameState,
			event.CategoryPlayerAction,
			event.CategoryUserNotification,
			event.CategoryAdminAction,
			event.CategorySystemStatus,
		},
		EventTypes: []string{eventType},
	}, handler)
}

// Running reports whether the bus accepts publish/subscribe
func (b *Bus) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// ActiveSubscriptionCount returns the number of registered subscriptions
func (b *Bus) ActiveSubscriptionCount() int {
	return b.registry.count()
}

// GetStatus snapshots bus health. Valid whether or not the bus is running.
func (b *Bus) GetStatus() Status {
	b.mu.Lock()
	running := b.running
	engine := b.engine
	b.mu.Unlock()

	st := Status{Running: running}
	if !running {
		return st
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st.ActiveSubscriptions = b.registry.count()
	st.EventsPerSecond = b.currentRate()
	st.QueueDepth = engine.queueDepth()
	st.MemoryUsage = mem.Alloc
	st.ErrorRate = engine.errorRate()
	return st
}

// recordPublish feeds the events-per-second estimate. The rate is the
// publish count over the last completed one-second window.
func (b *Bus) recordPublish() {
	b.rateMu.Lock()
	defer b.rateMu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(b.rateWindowStart); elapsed >= time.Second {
		b.lastRate = float64(b.rateCount) / elapsed.Seconds()
		b.rateWindowStart = now
		b.rateCount = 0
	}
	b.rateCount++
}

func (b *Bus) currentRate() float64 {
	b.rateMu.Lock()
	defer b.rateMu.Unlock()

	if elapsed := time.Since(b.rateWindowStart); elapsed >= time.Second {
		b.lastRate = float64(b.rateCount) / elapsed.Seconds()
		b.rateWindowStart = time.Now()
		b.rateCount = 0
	}
	return b.lastRate
}
