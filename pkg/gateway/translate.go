package gateway

import (
	"github.com/emberworks/relay/pkg/event"
)

// WireMessage is the inbound client message shape
type WireMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

type route struct {
	category  event.Category
	eventType string
}

// wireRoutes is the fixed translation table from wire message types to
// event category/type pairs. Messages with types outside this table are
// rejected rather than guessed at.
var wireRoutes = map[string]route{
	"player.move":   {event.CategoryPlayerAction, "move"},
	"player.action": {event.CategoryPlayerAction, "action"},
	"player.ready":  {event.CategoryPlayerAction, "ready"},
	"game.join":     {event.CategoryGameState, "join"},
	"game.leave":    {event.CategoryGameState, "leave"},
	"game.sync":     {event.CategoryGameState, "sync"},
	"chat.message":  {event.CategoryUserNotification, "chat"},
	"admin.command": {event.CategoryAdminAction, "command"},
	"system.report": {event.CategorySystemStatus, "report"},
}

// translate maps a wire message to an event envelope. The bool reports
// whether the message type is known.
func translate(msg WireMessage, sourceID string) (*event.Event, bool) {
	r, ok := wireRoutes[msg.Type]
	if !ok {
		return nil, false
	}
	ev := event.New(r.category, r.eventType, msg.Data)
	ev.SourceID = sourceID
	return ev, true
}
