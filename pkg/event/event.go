package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category classifies an event at the coarsest level. The set is closed;
// the free-form Type string discriminates within a category.
type Category string

const (
	CategoryGameState        Category = "game-state"
	CategoryPlayerAction     Category = "player-action"
	CategoryUserNotification Category = "user-notification"
	CategoryAdminAction      Category = "admin-action"
	CategorySystemStatus     Category = "system-status"
)

// Priority orders events for dispatch.
type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityNormal    Priority = "normal"
	PriorityHigh      Priority = "high"
	PriorityImmediate Priority = "immediate"
)

// DeliveryMode selects the dispatch guarantee for an event.
type DeliveryMode string

const (
	// DeliveryFireAndForget dispatches once; handler failures are counted, never retried.
	DeliveryFireAndForget DeliveryMode = "fire-and-forget"
	// DeliveryAtLeastOnce retries failed handlers with exponential backoff.
	DeliveryAtLeastOnce DeliveryMode = "at-least-once"
	// DeliveryExactlyOnce deduplicates by (event ID, subscription ID) within a TTL.
	DeliveryExactlyOnce DeliveryMode = "exactly-once"
	// DeliveryOrdered serializes dispatch per subscription in publish order.
	DeliveryOrdered DeliveryMode = "ordered"
)

// TargetType identifies what kind of entity a target references.
type TargetType string

const (
	TargetGame      TargetType = "game"
	TargetPlayer    TargetType = "player"
	TargetBroadcast TargetType = "broadcast"
)

// Target scopes an event to a game, a player, or everyone.
type Target struct {
	Type TargetType `json:"targetType"`
	ID   string     `json:"targetId,omitempty"`
}

// Metadata carries delivery policy for an event.
type Metadata struct {
	Priority     Priority     `json:"priority,omitempty"`
	DeliveryMode DeliveryMode `json:"deliveryMode,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	TTLMs        int64        `json:"ttlMs,omitempty"`
}

// Event is the immutable envelope flowing through the bus. Events are never
// mutated after publish; retries operate on copies.
type Event struct {
	ID        string         `json:"eventId"`
	Category  Category       `json:"category"`
	Type      string         `json:"type"`
	SourceID  string         `json:"sourceId,omitempty"`
	Targets   []Target       `json:"targets,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Metadata  Metadata       `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version,omitempty"`
}

// SchemaVersion is stamped on events built by New.
const SchemaVersion = "1"

// New builds an event envelope with a generated ID and current timestamp.
func New(category Category, eventType string, data map[string]any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Category:  category,
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		Version:   SchemaVersion,
		Metadata: Metadata{
			Priority:     PriorityNormal,
			DeliveryMode: DeliveryFireAndForget,
		},
	}
}

// ValidCategory reports whether c is one of the closed category set.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryGameState, CategoryPlayerAction, CategoryUserNotification,
		CategoryAdminAction, CategorySystemStatus:
		return true
	}
	return false
}

// ValidDeliveryMode reports whether m is a known delivery mode.
// The empty mode is valid and treated as fire-and-forget.
func ValidDeliveryMode(m DeliveryMode) bool {
	switch m {
	case "", DeliveryFireAndForget, DeliveryAtLeastOnce, DeliveryExactlyOnce, DeliveryOrdered:
		return true
	}
	return false
}

// Validate checks the envelope before it is accepted for publish.
func (e *Event) Validate() error {
	if e.Category == "" {
		return fmt.Errorf("event category is required")
	}
	if !ValidCategory(e.Category) {
		return fmt.Errorf("unknown event category %q", e.Category)
	}
	if e.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if !ValidDeliveryMode(e.Metadata.DeliveryMode) {
		return fmt.Errorf("unknown delivery mode %q", e.Metadata.DeliveryMode)
	}
	return nil
}

// Clone returns a copy safe to hand to a retry attempt. Targets and tags are
// copied; Data is shared because handlers must not mutate payloads.
func (e *Event) Clone() *Event {
	cp := *e
	if len(e.Targets) > 0 {
		cp.Targets = append([]Target(nil), e.Targets...)
	}
	if len(e.Metadata.Tags) > 0 {
		cp.Metadata.Tags = append([]string(nil), e.Metadata.Tags...)
	}
	return &cp
}

// Marshal serializes the envelope for the wire and for size accounting.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Field resolves a dotted path against the envelope for filter evaluation.
// Paths starting with "data." walk the payload map; "metadata.priority",
// "metadata.tags", top-level "type", "sourceId" and "category" are also
// addressable. The second result is false when the path does not resolve.
func (e *Event) Field(path string) (any, bool) {
	switch path {
	case "type":
		return e.Type, true
	case "category":
		return string(e.Category), true
	case "sourceId":
		return e.SourceID, true
	case "metadata.priority":
		return string(e.Metadata.Priority), true
	case "metadata.deliveryMode":
		return string(e.Metadata.DeliveryMode), true
	case "metadata.tags":
		return e.Metadata.Tags, true
	}
	if rest, ok := strings.CutPrefix(path, "data."); ok {
		return lookup(e.Data, rest)
	}
	return nil, false
}

func lookup(m map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = m
	for _, p := range parts {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// HasTarget reports whether the event addresses the given target, either
// explicitly or through a broadcast target. An event with no targets is
// considered addressed to everyone.
func (e *Event) HasTarget(tt TargetType, id string) bool {
	if len(e.Targets) == 0 {
		return true
	}
	for _, t := range e.Targets {
		if t.Type == TargetBroadcast {
			return true
		}
		if t.Type == tt && t.ID == id {
			return true
		}
	}
	return false
}
