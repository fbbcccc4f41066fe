package gateway

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/emberworks/relay/pkg/metrics"
)

const maxDecodeErrorsPerConn = 8

type inboundFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type authPayload struct {
	Token string `json:"token"`
}

type subscribePayload struct {
	Topics []string `json:"topics"`
}

type errorPayload struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

type closePayload struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// wsSocket adapts a websocket connection to the Socket interface, with
// writes serialized behind a mutex.
type wsSocket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSSocket(conn *websocket.Conn) *wsSocket {
	return &wsSocket{conn: conn}
}

func (s *wsSocket) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return websocket.Message.Send(s.conn, string(frame))
}

// Close emits a close frame carrying the code and reason, then tears the
// transport down. The JSON close frame stands in for a websocket close
// code, which this transport API does not expose.
func (s *wsSocket) Close(code int, reason string) error {
	payload, _ := json.Marshal(closePayload{Code: code, Reason: reason})
	frame, _ := json.Marshal(outboundFrame{Type: "close", Data: payload})
	_ = s.Send(frame)
	return s.conn.Close()
}

// NewHandler creates the gateway's HTTP routes: the websocket endpoint,
// liveness, and readiness.
func NewHandler(g *Gateway) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/readyz", metrics.ReadyHandler())

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		g.serveConn(conn)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	return mux
}

// serveConn runs one connection's receive loop: register, then decode and
// route frames until the peer goes away or breaks policy.
func (g *Gateway) serveConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	connectionID := uuid.NewString()
	socket := newWSSocket(conn)

	remote := ""
	if req := conn.Request(); req != nil {
		remote = req.RemoteAddr
	}

	result := g.HandleConnection(connectionID, remote, socket)
	if !result.Success {
		writeError(socket, "", result.Error, 0)
		return
	}
	defer g.HandleDisconnection(connectionID)

	welcome, _ := json.Marshal(result)
	writeFrame(socket, outboundFrame{Type: "welcome", Data: welcome})

	decodeErrors := 0

	for {
		var raw string
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			// EOF and closed-connection errors both end the session
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal([]byte(raw), &frame); err != nil {
			decodeErrors++
			writeError(socket, "", "invalid frame payload", 0)
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		switch frame.Type {
		case "auth":
			g.handleAuthFrame(connectionID, socket, frame)
		case "subscribe":
			g.handleSubscribeFrame(connectionID, socket, frame)
		case "ping":
			writeFrame(socket, outboundFrame{Type: "pong", RequestID: frame.RequestID})
		default:
			g.handleWireFrame(connectionID, socket, frame)
		}
	}
}

func (g *Gateway) handleAuthFrame(connectionID string, socket Socket, frame inboundFrame) {
	var payload authPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		writeError(socket, frame.RequestID, "invalid auth payload", 0)
		return
	}

	result := g.Authenticate(connectionID, payload.Token)
	data, _ := json.Marshal(result)
	writeFrame(socket, outboundFrame{Type: "auth.result", RequestID: frame.RequestID, Data: data})
}

func (g *Gateway) handleSubscribeFrame(connectionID string, socket Socket, frame inboundFrame) {
	var payload subscribePayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		writeError(socket, frame.RequestID, "invalid subscribe payload", 0)
		return
	}

	if err := g.SubscribeToEvents(connectionID, payload.Topics); err != nil {
		writeError(socket, frame.RequestID, err.Error(), 0)
		return
	}
	writeFrame(socket, outboundFrame{Type: "ack", RequestID: frame.RequestID})
}

func (g *Gateway) handleWireFrame(connectionID string, socket Socket, frame inboundFrame) {
	var data map[string]any
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			writeError(socket, frame.RequestID, "invalid frame payload", 0)
			return
		}
	}

	result := g.HandleMessage(connectionID, WireMessage{Type: frame.Type, Data: data})
	if !result.Accepted {
		writeError(socket, frame.RequestID, result.Error, 0)
		return
	}
	writeFrame(socket, outboundFrame{Type: "ack", RequestID: frame.RequestID})
}

func writeFrame(socket Socket, frame outboundFrame) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return
	}
	_ = socket.Send(raw)
}

func writeError(socket Socket, requestID, message string, code int) {
	payload, _ := json.Marshal(errorPayload{Error: message, Code: code})
	writeFrame(socket, outboundFrame{Type: "error", RequestID: requestID, Data: payload})
}

func mustRaw(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
