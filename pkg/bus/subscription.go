package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/emberworks/relay/pkg/event"
)

// Handler is invoked once per delivered event. A non-nil error (or a panic)
// counts as a delivery failure for the event's delivery mode.
type Handler func(ctx context.Context, ev *event.Event) error

// FilterOperator compares an event field against a subscription filter value
type FilterOperator string

const (
	OpEquals    FilterOperator = "EQUALS"
	OpNotEquals FilterOperator = "NOT_EQUALS"
	OpIn        FilterOperator = "IN"
	OpContains  FilterOperator = "CONTAINS"
)

// Filter is a predicate over event fields. Field uses dotted paths into the
// envelope, e.g. "data.playerId" or "metadata.priority".
type Filter struct {
	Field    string         `json:"field"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value"`
}

// Options tunes per-subscription delivery behavior
type Options struct {
	BufferDuringDisconnect bool  `json:"bufferDuringDisconnect,omitempty"`
	MaxBufferSize          int   `json:"maxBufferSize,omitempty"`
	BatchEvents            bool  `json:"batchEvents,omitempty"`
	MaxBatchSize           int   `json:"maxBatchSize,omitempty"`
	BatchTimeoutMs         int64 `json:"batchTimeoutMs,omitempty"`
	EnableDeduplication    bool  `json:"enableDeduplication,omitempty"`
	IncludeHistory         bool  `json:"includeHistory,omitempty"`
}

// Subscription selects which events a subscriber receives
type Subscription struct {
	ID           string           `json:"subscriptionId"`
	SubscriberID string           `json:"subscriberId"`
	Name         string           `json:"name,omitempty"`
	Categories   []event.Category `json:"categories"`
	EventTypes   []string         `json:"eventTypes,omitempty"`
	Filters      []Filter         `json:"filters,omitempty"`
	Targets      []event.Target   `json:"targets,omitempty"`
	Options      Options          `json:"options"`
}

// Validate rejects subscriptions the registry cannot match against
func (s *Subscription) Validate() error {
	if s.SubscriberID == "" {
		return fmt.Errorf("subscriberId is required")
	}
	if len(s.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	for _, c := range s.Categories {
		if !event.ValidCategory(c) {
			return fmt.Errorf("unknown category %q", c)
		}
	}
	for _, f := range s.Filters {
		switch f.Operator {
		case OpEquals, OpNotEquals, OpIn, OpContains:
		default:
			return fmt.Errorf("unknown filter operator %q", f.Operator)
		}
	}
	return nil
}

// Matches reports whether the subscription selects the given event
func (s *Subscription) Matches(ev *event.Event) bool {
	if !s.matchesCategory(ev.Category) {
		return false
	}
	if len(s.EventTypes) > 0 && !containsString(s.EventTypes, ev.Type) {
		return false
	}
	for _, f := range s.Filters {
		if !f.Evaluate(ev) {
			return false
		}
	}
	if len(s.Targets) > 0 {
		scoped := false
		for _, t := range s.Targets {
			if ev.HasTarget(t.Type, t.ID) {
				scoped = true
				break
			}
		}
		if !scoped {
			return false
		}
	}
	return true
}

func (s *Subscription) matchesCategory(c event.Category) bool {
	for _, sc := range s.Categories {
		if sc == c {
			return true
		}
	}
	return false
}

// Evaluate applies the filter to an event. A field that does not resolve
// never matches, regardless of operator.
func (f *Filter) Evaluate(ev *event.Event) bool {
	got, ok := ev.Field(f.Field)
	if !ok {
		return false
	}

	switch f.Operator {
	case OpEquals:
		return valueEquals(got, f.Value)
	case OpNotEquals:
		return !valueEquals(got, f.Value)
	case OpIn:
		for _, want := range toSlice(f.Value) {
			if valueEquals(got, want) {
				return true
			}
		}
		return false
	case OpContains:
		switch v := got.(type) {
		case string:
			want, isStr := f.Value.(string)
			return isStr && strings.Contains(v, want)
		default:
			for _, item := range toSlice(got) {
				if valueEquals(item, f.Value) {
					return true
				}
			}
			return false
		}
	}
	return false
}

// valueEquals compares two values after normalizing numeric types. JSON
// decoding yields float64 for all numbers, so integer filter values must
// still compare equal to decoded payload fields.
func valueEquals(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	if a == b {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
