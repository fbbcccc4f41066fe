package bus

import (
	"testing"

	"github.com/emberworks/relay/pkg/event"
)

func TestSubscriptionValidate(t *testing.T) {
	tests := []struct {
		name    string
		sub     *Subscription
		wantErr bool
	}{
		{
			name: "valid",
			sub: &Subscription{
				SubscriberID: "s1",
				Categories:   []event.Category{event.CategoryPlayerAction},
			},
			wantErr: false,
		},
		{
			name:    "missing subscriber",
			sub:     &Subscription{Categories: []event.Category{event.CategoryPlayerAction}},
			wantErr: true,
		},
		{
			name:    "no categories",
			sub:     &Subscription{SubscriberID: "s1"},
			wantErr: true,
		},
		{
			name: "unknown category",
			sub: &Subscription{
				SubscriberID: "s1",
				Categories:   []event.Category{"weather"},
			},
			wantErr: true,
		},
		{
			name: "unknown operator",
			sub: &Subscription{
				SubscriberID: "s1",
				Categories:   []event.Category{event.CategoryPlayerAction},
				Filters:      []Filter{{Field: "data.x", Operator: "LIKE", Value: 1}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sub.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscriptionMatches(t *testing.T) {
	moveEvent := func() *event.Event {
		ev := event.New(event.CategoryPlayerAction, "move", map[string]any{
			"playerId": "p1",
			"x":        5.0,
		})
		ev.Targets = []event.Target{{Type: event.TargetGame, ID: "g1"}}
		return ev
	}

	tests := []struct {
		name string
		sub  Subscription
		ev   *event.Event
		want bool
	}{
		{
			name: "category match, no type filter",
			sub: Subscription{
				Categories: []event.Category{event.CategoryPlayerAction},
			},
			ev:   moveEvent(),
			want: true,
		},
		{
			name: "category mismatch",
			sub: Subscription{
				Categories: []event.Category{event.CategoryAdminAction},
			},
			ev:   moveEvent(),
			want: false,
		},
		{
			name: "type filter match",
			sub: Subscription{
				Categories: []event.Category{event.CategoryPlayerAction},
				EventTypes: []string{"move", "jump"},
			},
			ev:   moveEvent(),
			want: true,
		},
		{
			name: "type filter mismatch",
			sub: Subscription{
				Categories: []event.Category{event.CategoryPlayerAction},
				EventTypes: []string{"jump"},
			},
			ev:   moveEvent(),
			want: false,
		},
		{
			name: "equals filter match",
			sub: Subscription{
				Categories: []event.Category{event.CategoryPlayerAction},
				Filters:    []Filter{{Field: "data.playerId", Operator: OpEquals, Value: "p1"}},
			},
			ev:   moveEvent(),
			want: true,
		},
		{
			name: "equals filter mismatch",
			sub: Subscription{
				Categories: []event.Category{event.CategoryPlayerAction},
				Filters:    []Filter{{Field: "data.playerId", Operator: OpEquals, Value: "p2"}},
			},
			ev:   moveEvent(),
			want: false,
		},
		{
			name: "numeric equals across int and float",
			sub: Subscription{
				Categories: []event.Category{event.CategoryPlayerAction},
				Filters:    []Filter{{Field: "data.x", Operator: OpEquals, Value: 5}},
			},
			ev:   moveEvent(),
			want: true,
		},
		{
			name: "in filter match",
			sub: Subscription{
				Categories: []event.Category{event.CategoryPlayerAction},
				Filters: []Filter{{
					Field:    "data.playerId",
					Operator: OpIn,
					Value:    []any{"p1", "p2"},
				}},
			},
			ev:   moveEvent(),
			want: true,
		},
		{
			name: "in filter mismatch",
			sub: Subscription{
				Categories: []event.Category{event.CategoryPlayerAction},
				Filters: []Filter{{
					Field:    "data.playerId",
					Operator: OpIn,
					Value:    []any{"p2", "p3"},
				}},
			},
			ev:   moveEvent(),
			want: false,
		},
		{
			name: "not-equals filter",
			sub: Subscription{
				Categories: []event.Category{event.CategoryPlayerAction},
				Filters:    []Filter{{Field: "data.playerId", Operator: OpNotEquals, Value: "p2"}},
			},
			ev:   moveEvent(),
			want: true,
		},
		{
			name: "unresolved field never matches",
			sub: Subscription{
				Categories: []event.Category{event.CategoryPlayerAction},
				Filters:    []Filter{{Field: "data.missing", Operator: OpNotEquals, Value: "x"}},
			},
			ev:   moveEvent(),
			want: false,
		},
		{
			name: "target scope match",
			sub: Subscription{
				Categories: []event.Category{event.CategoryPlayerAction},
				Targets:    []event.Target{{Type: event.TargetGame, ID: "g1"}},
			},
			ev:   moveEvent(),
			want: true,
		},
		{
			name: "target scope mismatch",
			sub: Subscription{
				Categories: []event.Category{event.CategoryPlayerAction},
				Targets:    []event.Target{{Type: event.TargetGame, ID: "g2"}},
			},
			ev:   moveEvent(),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.Matches(tt.ev); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterContains(t *testing.T) {
	ev := event.New(event.CategoryUserNotification, "chat", map[string]any{
		"body": "hello world",
		"tags": []any{"urgent", "pvp"},
	})

	substr := Filter{Field: "data.body", Operator: OpContains, Value: "world"}
	if !substr.Evaluate(ev) {
		t.Error("CONTAINS should match a substring of a string field")
	}

	member := Filter{Field: "data.tags", Operator: OpContains, Value: "pvp"}
	if !member.Evaluate(ev) {
		t.Error("CONTAINS should match a member of a list field")
	}

	missing := Filter{Field: "data.tags", Operator: OpContains, Value: "pve"}
	if missing.Evaluate(ev) {
		t.Error("CONTAINS should not match a missing member")
	}
}
