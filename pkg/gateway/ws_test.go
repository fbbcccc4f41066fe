package gateway

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/emberworks/relay/pkg/config"
	"github.com/emberworks/relay/pkg/event"
)

// dialGateway spins up the gateway's HTTP handler and opens a websocket
// session against it.
func dialGateway(t *testing.T, g *Gateway) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(NewHandler(g))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) outboundFrame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var raw string
	require.NoError(t, websocket.Message.Receive(conn, &raw))

	var frame outboundFrame
	require.NoError(t, json.Unmarshal([]byte(raw), &frame))
	return frame
}

func sendFrame(t *testing.T, conn *websocket.Conn, frameType, requestID string, data any) {
	t.Helper()

	frame := inboundFrame{Type: frameType, RequestID: requestID}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		frame.Data = raw
	}
	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, websocket.Message.Send(conn, string(raw)))
}

func TestWebsocketSession(t *testing.T) {
	g := newTestGateway(t, testGatewayConfig(), config.Auth{})

	conn := dialGateway(t, g)

	welcome := readFrame(t, conn)
	require.Equal(t, "welcome", welcome.Type)

	var connect ConnectResult
	require.NoError(t, json.Unmarshal(welcome.Data, &connect))
	assert.True(t, connect.Success)
	assert.True(t, connect.RequiresAuth)

	// Authenticate
	sendFrame(t, conn, "auth", "r1", authPayload{Token: "good-token"})
	authFrame := readFrame(t, conn)
	require.Equal(t, "auth.result", authFrame.Type)
	assert.Equal(t, "r1", authFrame.RequestID)

	var authResult AuthResult
	require.NoError(t, json.Unmarshal(authFrame.Data, &authResult))
	require.True(t, authResult.Success)
	assert.Equal(t, "user-1", authResult.UserID)

	// Subscribe to game state
	sendFrame(t, conn, "subscribe", "r2", subscribePayload{Topics: []string{"game-state"}})
	ack := readFrame(t, conn)
	require.Equal(t, "ack", ack.Type)
	assert.Equal(t, "r2", ack.RequestID)

	// Ping round-trip
	sendFrame(t, conn, "ping", "r3", nil)
	pong := readFrame(t, conn)
	require.Equal(t, "pong", pong.Type)
	assert.Equal(t, "r3", pong.RequestID)

	// A wire message routes through the bus
	sendFrame(t, conn, "game.sync", "r4", map[string]any{"tick": 9})
	var sawAck, sawEvent bool
	for i := 0; i < 2; i++ {
		frame := readFrame(t, conn)
		switch frame.Type {
		case "ack":
			assert.Equal(t, "r4", frame.RequestID)
			sawAck = true
		case "event":
			var ev event.Event
			require.NoError(t, json.Unmarshal(frame.Data, &ev))
			assert.Equal(t, event.CategoryGameState, ev.Category)
			assert.Equal(t, "sync", ev.Type)
			assert.Equal(t, "user-1", ev.SourceID)
			sawEvent = true
		default:
			t.Fatalf("unexpected frame type %q", frame.Type)
		}
	}
	assert.True(t, sawAck)
	assert.True(t, sawEvent)
}

func TestWebsocketRejectsUnauthenticatedMessages(t *testing.T) {
	g := newTestGateway(t, testGatewayConfig(), config.Auth{})
	conn := dialGateway(t, g)

	welcome := readFrame(t, conn)
	require.Equal(t, "welcome", welcome.Type)

	sendFrame(t, conn, "player.move", "r1", map[string]any{"x": 1})
	errFrame := readFrame(t, conn)
	require.Equal(t, "error", errFrame.Type)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(errFrame.Data, &payload))
	assert.Equal(t, "Not authenticated", payload.Error)
}

func TestWebsocketInvalidFrameTolerance(t *testing.T) {
	g := newTestGateway(t, testGatewayConfig(), config.Auth{})
	conn := dialGateway(t, g)

	welcome := readFrame(t, conn)
	require.Equal(t, "welcome", welcome.Type)

	require.NoError(t, websocket.Message.Send(conn, "this is not json"))
	errFrame := readFrame(t, conn)
	assert.Equal(t, "error", errFrame.Type)

	// The session survives a malformed frame
	sendFrame(t, conn, "ping", "r1", nil)
	pong := readFrame(t, conn)
	assert.Equal(t, "pong", pong.Type)
}
