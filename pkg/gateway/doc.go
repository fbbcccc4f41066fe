/*
Package gateway terminates client websocket connections and bridges them
onto the event bus.

The gateway owns everything between the network and the bus: the connection
lifecycle state machine, token authentication with a deadline, per-connection
rate limiting, translation of wire messages into event envelopes, and cascade
cleanup of a connection's subscriptions when it goes away. The bus is
injected; the gateway never manages bus lifecycle.

# Architecture

	┌──────────────────── CONNECTION GATEWAY ──────────────────┐
	│                                                           │
	│  websocket ──► /ws                                        │
	│       │                                                   │
	│  ┌────▼───────────────────────────────────────┐          │
	│  │         Connection Registry                 │          │
	│  │  - capacity enforcement (MaxConnections)    │          │
	│  │  - one Connection per transport session     │          │
	│  └────┬───────────────────────────────────────┘          │
	│       │                                                   │
	│  ┌────▼───────────────────────────────────────┐          │
	│  │         Lifecycle State Machine             │          │
	│  │                                             │          │
	│  │  CONNECTING ─► AUTHENTICATING ─► AUTHENTICATED │       │
	│  │                     │                  │     │         │
	│  │                deadline/failures    ACTIVE   │         │
	│  │                     └──────► CLOSED ◄┘       │         │
	│  └────┬───────────────────────────────────────┘          │
	│       │ ACTIVE only                                       │
	│  ┌────▼───────────────────────────────────────┐          │
	│  │    Rate Limiter ─► Translator ─► Bus        │          │
	│  └────────────────────────────────────────────┘          │
	└───────────────────────────────────────────────────────────┘

# Connection Lifecycle

Connections register in CONNECTING and immediately advance to
AUTHENTICATING, arming the authentication deadline timer. A valid token
moves the connection through AUTHENTICATED to ACTIVE; only ACTIVE
connections may send wire messages or subscribe. CLOSED is terminal and
sticky.

Failed authentication before the deadline leaves the connection open for
retry. When Auth.MaxFailedAttempts is set, exceeding it force-closes the
connection with close code 1008 (policy violation). The deadline elapsing
does the same.

# Frame Protocol

Clients exchange JSON frames over the websocket. Inbound:

	{"type": "auth", "requestId": "r1", "data": {"token": "..."}}
	{"type": "subscribe", "requestId": "r2", "data": {"topics": ["game-state:sync"]}}
	{"type": "ping", "requestId": "r3"}
	{"type": "player.move", "requestId": "r4", "data": {"x": 5, "y": 3}}

Any frame type outside auth/subscribe/ping is treated as a wire message and
routed through the translation table. Outbound frame types are welcome,
auth.result, ack, error, pong, event and close.

# Usage

	b := bus.New(cfg.Bus)
	_ = b.Initialize()

	validator := auth.NewJWTValidator(secret)
	gw := gateway.New(cfg.Gateway, cfg.Auth, b, validator)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: gateway.NewHandler(gw),
	}
	_ = srv.ListenAndServe()

Driving the gateway without a transport (tests, embedding):

	result := gw.HandleConnection(connID, remoteAddr, socket)
	auth := gw.Authenticate(connID, token)
	msg := gw.HandleMessage(connID, gateway.WireMessage{Type: "player.move"})
	gw.HandleDisconnection(connID)

# Rate Limiting

Each connection carries a fixed-window limiter (MaxMessages per WindowMs).
A rejected message produces a stable "Rate limit exceeded" error but never
closes the connection; the window resets on its own.

# Cascade Cleanup

SubscribeToEvents registers bus subscriptions with the connection ID as
subscriber. HandleDisconnection removes the connection, cancels its auth
timer and unsubscribes everything it owned, so an abrupt disconnect never
leaks subscriptions. Disconnection is idempotent.

# Stable Error Strings

Client-facing errors are fixed strings clients may match on:
"Maximum connections exceeded", "Invalid authentication token",
"Rate limit exceeded", "Authentication timeout".

# See Also

  - Package bus for subscription semantics
  - Package auth for token validation
  - Package config for gateway tunables
*/
package gateway
