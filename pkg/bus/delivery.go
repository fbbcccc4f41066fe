package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/emberworks/relay/pkg/config"
	"github.com/emberworks/relay/pkg/event"
	"github.com/emberworks/relay/pkg/metrics"
)

const (
	defaultOrderedQueueSize = 256
	defaultDedupTTL         = 5 * time.Minute
	dedupSweepInterval      = time.Minute
)

// deliveryEngine executes mode-specific dispatch for matched subscriptions.
// All asynchronous work (retries, ordered queue workers, the dedup sweeper)
// is bound to the engine's context and tracked by its WaitGroup so shutdown
// can cancel and drain it.
type deliveryEngine struct {
	ctx    context.Context
	wg     sync.WaitGroup
	retry  config.Retry
	logger zerolog.Logger

	mu      sync.Mutex
	ordered map[string]*orderedQueue
	seen    map[string]map[string]time.Time

	delivered atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64
}

type orderedQueue struct {
	ch   chan *event.Event
	done chan struct{}
}

func newDeliveryEngine(ctx context.Context, retry config.Retry, logger zerolog.Logger) *deliveryEngine {
	e := &deliveryEngine{
		ctx:     ctx,
		retry:   retry,
		logger:  logger,
		ordered: make(map[string]*orderedQueue),
		seen:    make(map[string]map[string]time.Time),
	}
	e.wg.Add(1)
	go e.sweepDedup()
	return e
}

// dispatch routes one matched event to one subscription according to the
// event's delivery mode. It never blocks the publisher except for an
// ordered-queue drop-oldest swap.
func (e *deliveryEngine) dispatch(en *entry, ev *event.Event, defaultTTL time.Duration) {
	mode := ev.Metadata.DeliveryMode
	if mode == "" {
		mode = event.DeliveryFireAndForget
	}

	switch mode {
	case event.DeliveryFireAndForget:
		e.async(func() {
			e.attemptOnce(en, ev, mode)
		})

	case event.DeliveryAtLeastOnce:
		e.async(func() {
			e.attemptWithRetry(en, ev, mode)
		})

	case event.DeliveryExactlyOnce:
		if e.markSeen(en.sub.ID, ev.ID, dedupTTL(ev, defaultTTL)) {
			metrics.DeduplicatedEvents.Inc()
			return
		}
		e.async(func() {
			e.attemptOnce(en, ev, mode)
		})

	case event.DeliveryOrdered:
		e.enqueueOrdered(en, ev)
	}
}

func (e *deliveryEngine) async(fn func()) {
	e.inFlight.Add(1)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.inFlight.Add(-1)
		fn()
	}()
}

// attemptOnce runs the handler a single time. Failures are counted and
// logged but never retried.
func (e *deliveryEngine) attemptOnce(en *entry, ev *event.Event, mode event.DeliveryMode) {
	if err := e.invoke(en, ev); err != nil {
		e.failed.Add(1)
		metrics.Deliveries.WithLabelValues(string(mode), "failure").Inc()
		e.logger.Warn().
			Str("event_id", ev.ID).
			Str("subscription_id", en.sub.ID).
			Err(err).
			Msg("delivery failed")
		return
	}
	e.delivered.Add(1)
	metrics.Deliveries.WithLabelValues(string(mode), "success").Inc()
}

// attemptWithRetry runs the handler with exponential backoff up to the
// configured attempt limit. Each retry operates on a copy of the event.
func (e *deliveryEngine) attemptWithRetry(en *entry, ev *event.Event, mode event.DeliveryMode) {
	attempts := e.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			metrics.DeliveryRetries.Inc()
			if !e.sleep(e.backoff(attempt - 1)) {
				return
			}
			ev = ev.Clone()
		}
		if lastErr = e.invoke(en, ev); lastErr == nil {
			e.delivered.Add(1)
			metrics.Deliveries.WithLabelValues(string(mode), "success").Inc()
			return
		}
	}

	e.failed.Add(1)
	metrics.Deliveries.WithLabelValues(string(mode), "failure").Inc()
	e.logger.Warn().
		Str("event_id", ev.ID).
		Str("subscription_id", en.sub.ID).
		Int("attempts", attempts).
		Err(lastErr).
		Msg("delivery failed after retries")
}

// backoff computes base * multiplier^attempt capped at the configured max
func (e *deliveryEngine) backoff(attempt int) time.Duration {
	delay := float64(e.retry.BaseDelay())
	for i := 0; i < attempt; i++ {
		delay *= e.retry.BackoffMultiplier
	}
	if max := float64(e.retry.MaxDelay()); max > 0 && delay > max {
		delay = max
	}
	return time.Duration(delay)
}

// sleep waits for d unless the engine is shutting down. Returns false when
// cancelled.
func (e *deliveryEngine) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// invoke calls the handler, converting panics into delivery errors so one
// misbehaving subscriber cannot take the bus down.
func (e *deliveryEngine) invoke(en *entry, ev *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DeliveryLatency)

	return en.handler(e.ctx, ev)
}

// enqueueOrdered appends the event to the subscription's FIFO queue,
// starting the queue worker on first use. A full queue drops its oldest
// entry rather than blocking the publisher.
func (e *deliveryEngine) enqueueOrdered(en *entry, ev *event.Event) {
	size := en.sub.Options.MaxBufferSize
	if size <= 0 {
		size = defaultOrderedQueueSize
	}

	e.mu.Lock()
	q, ok := e.ordered[en.sub.ID]
	if !ok {
		q = &orderedQueue{
			ch:   make(chan *event.Event, size),
			done: make(chan struct{}),
		}
		e.ordered[en.sub.ID] = q
		e.wg.Add(1)
		go e.runOrdered(en, q)
	}
	e.mu.Unlock()

	for {
		select {
		case q.ch <- ev:
			return
		default:
		}
		select {
		case <-q.ch:
			metrics.DroppedEvents.Inc()
		default:
		}
	}
}

// runOrdered drains one subscription's queue, finishing each event
// (including its retries) before starting the next.
func (e *deliveryEngine) runOrdered(en *entry, q *orderedQueue) {
	defer e.wg.Done()
	for {
		select {
		case ev := <-q.ch:
			e.attemptWithRetry(en, ev, event.DeliveryOrdered)
		case <-q.done:
			return
		case <-e.ctx.Done():
			return
		}
	}
}

// removeSubscription reclaims engine state owned by a subscription
func (e *deliveryEngine) removeSubscription(subscriptionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if q, ok := e.ordered[subscriptionID]; ok {
		close(q.done)
		delete(e.ordered, subscriptionID)
	}
	delete(e.seen, subscriptionID)
}

// markSeen records (subscription, event) in the dedup set. Returns true if
// the pair was already present and not yet expired.
func (e *deliveryEngine) markSeen(subscriptionID, eventID string, ttl time.Duration) bool {
	now := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	byEvent := e.seen[subscriptionID]
	if byEvent == nil {
		byEvent = make(map[string]time.Time)
		e.seen[subscriptionID] = byEvent
	}
	if expiry, ok := byEvent[eventID]; ok && now.Before(expiry) {
		return true
	}
	byEvent[eventID] = now.Add(ttl)
	return false
}

func (e *deliveryEngine) sweepDedup() {
	defer e.wg.Done()
	ticker := time.NewTicker(dedupSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			e.mu.Lock()
			for subID, byEvent := range e.seen {
				for eventID, expiry := range byEvent {
					if now.After(expiry) {
						delete(byEvent, eventID)
					}
				}
				if len(byEvent) == 0 {
					delete(e.seen, subID)
				}
			}
			e.mu.Unlock()
		case <-e.ctx.Done():
			return
		}
	}
}

// queueDepth reports buffered ordered events plus in-flight dispatches
func (e *deliveryEngine) queueDepth() int {
	depth := int(e.inFlight.Load())
	e.mu.Lock()
	for _, q := range e.ordered {
		depth += len(q.ch)
	}
	e.mu.Unlock()
	return depth
}

// errorRate is the fraction of dispatches that terminally failed
func (e *deliveryEngine) errorRate() float64 {
	failed := float64(e.failed.Load())
	total := failed + float64(e.delivered.Load())
	if total == 0 {
		return 0
	}
	return failed / total
}

// drain waits for outstanding work up to the grace period
func (e *deliveryEngine) drain(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		e.logger.Warn().Msg("shutdown grace period elapsed with deliveries still in flight")
	}
}

func dedupTTL(ev *event.Event, defaultTTL time.Duration) time.Duration {
	if ev.Metadata.TTLMs > 0 {
		return time.Duration(ev.Metadata.TTLMs) * time.Millisecond
	}
	if defaultTTL > 0 {
		return defaultTTL
	}
	return defaultDedupTTL
}
