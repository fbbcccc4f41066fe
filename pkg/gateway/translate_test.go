package gateway

import (
	"testing"

	"github.com/emberworks/relay/pkg/event"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		wireType  string
		category  event.Category
		eventType string
		known     bool
	}{
		{"player.move", event.CategoryPlayerAction, "move", true},
		{"player.action", event.CategoryPlayerAction, "action", true},
		{"player.ready", event.CategoryPlayerAction, "ready", true},
		{"game.join", event.CategoryGameState, "join", true},
		{"game.leave", event.CategoryGameState, "leave", true},
		{"game.sync", event.CategoryGameState, "sync", true},
		{"chat.message", event.CategoryUserNotification, "chat", true},
		{"admin.command", event.CategoryAdminAction, "command", true},
		{"system.report", event.CategorySystemStatus, "report", true},
		{"player.teleport", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.wireType, func(t *testing.T) {
			ev, known := translate(WireMessage{Type: tt.wireType, Data: map[string]any{"k": "v"}}, "user-1")
			if known != tt.known {
				t.Fatalf("translate(%q) known = %v, want %v", tt.wireType, known, tt.known)
			}
			if !known {
				return
			}
			if ev.Category != tt.category || ev.Type != tt.eventType {
				t.Errorf("translate(%q) = %s/%s, want %s/%s",
					tt.wireType, ev.Category, ev.Type, tt.category, tt.eventType)
			}
			if ev.SourceID != "user-1" {
				t.Errorf("translate(%q) sourceId = %q, want user-1", tt.wireType, ev.SourceID)
			}
			if ev.Data["k"] != "v" {
				t.Errorf("translate(%q) should carry payload data", tt.wireType)
			}
		})
	}
}
