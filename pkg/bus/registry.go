package bus

import (
	"sync"

	"github.com/emberworks/relay/pkg/event"
)

// entry pairs a subscription with its handler
type entry struct {
	sub     *Subscription
	handler Handler
}

// registry stores active subscriptions behind a single RWMutex. Matching is
// a linear scan; subscription counts are small relative to event volume.
type registry struct {
	mu           sync.RWMutex
	entries      map[string]*entry
	bySubscriber map[string]map[string]struct{}
}

func newRegistry() *registry {
	return &registry{
		entries:      make(map[string]*entry),
		bySubscriber: make(map[string]map[string]struct{}),
	}
}

func (r *registry) add(sub *Subscription, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[sub.ID] = &entry{sub: sub, handler: handler}
	owned := r.bySubscriber[sub.SubscriberID]
	if owned == nil {
		owned = make(map[string]struct{})
		r.bySubscriber[sub.SubscriberID] = owned
	}
	owned[sub.ID] = struct{}{}
}

// remove deletes a subscription by ID. Removing an unknown ID is a no-op;
// the returned bool reports whether anything was deleted.
func (r *registry) remove(subscriptionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[subscriptionID]
	if !ok {
		return false
	}
	delete(r.entries, subscriptionID)
	if owned := r.bySubscriber[e.sub.SubscriberID]; owned != nil {
		delete(owned, subscriptionID)
		if len(owned) == 0 {
			delete(r.bySubscriber, e.sub.SubscriberID)
		}
	}
	return true
}

// removeAll deletes every subscription owned by a subscriber and returns
// the removed subscription IDs.
func (r *registry) removeAll(subscriberID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := r.bySubscriber[subscriberID]
	if len(owned) == 0 {
		return nil
	}
	removed := make([]string, 0, len(owned))
	for id := range owned {
		delete(r.entries, id)
		removed = append(removed, id)
	}
	delete(r.bySubscriber, subscriberID)
	return removed
}

// match returns the entries whose subscriptions select the event. The slice
// is a snapshot; handlers run without the registry lock held.
func (r *registry) match(ev *event.Event) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*entry
	for _, e := range r.entries {
		if e.sub.Matches(ev) {
			matched = append(matched, e)
		}
	}
	return matched
}

func (r *registry) get(subscriptionID string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[subscriptionID]
	return e, ok
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// clear drops every subscription. Used on shutdown.
func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*entry)
	r.bySubscriber = make(map[string]map[string]struct{})
}
