package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/emberworks/relay/pkg/auth"
	"github.com/emberworks/relay/pkg/bus"
	"github.com/emberworks/relay/pkg/config"
	"github.com/emberworks/relay/pkg/event"
	"github.com/emberworks/relay/pkg/log"
	"github.com/emberworks/relay/pkg/metrics"
)

// Stable client-facing error strings
const (
	errMaxConnections = "Maximum connections exceeded"
	errInvalidToken   = "Invalid authentication token"
	errRateLimited    = "Rate limit exceeded"
	errAuthTimeout    = "Authentication timeout"
	errNotAuthorized  = "Not authenticated"
	errUnknownConn    = "Unknown connection"
	errUnknownType    = "Unknown message type"
	errTooManyAuth    = "Too many failed authentication attempts"
)

// ConnectResult reports the outcome of HandleConnection
type ConnectResult struct {
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	RequiresAuth  bool   `json:"requiresAuth,omitempty"`
	AuthTimeoutMs int64  `json:"authTimeout,omitempty"`
}

// AuthResult reports the outcome of Authenticate
type AuthResult struct {
	Success     bool     `json:"success"`
	Error       string   `json:"error,omitempty"`
	UserID      string   `json:"userId,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// MessageResult reports the outcome of HandleMessage
type MessageResult struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// Stats is a snapshot of connection counts
type Stats struct {
	TotalConnections         int `json:"totalConnections"`
	AuthenticatedConnections int `json:"authenticatedConnections"`
}

// Gateway terminates client transport sessions and bridges them onto the
// event bus. The bus is injected; the gateway never owns bus lifecycle.
type Gateway struct {
	cfg      config.Gateway
	authCfg  config.Auth
	bus      *bus.Bus
	verifier auth.Validator
	logger   zerolog.Logger
	conns    *connRegistry
}

// New constructs a gateway bound to a bus and a token validator
func New(cfg config.Gateway, authCfg config.Auth, b *bus.Bus, verifier auth.Validator) *Gateway {
	return &Gateway{
		cfg:      cfg,
		authCfg:  authCfg,
		bus:      b,
		verifier: verifier,
		logger:   log.WithComponent("gateway"),
		conns:    newConnRegistry(cfg.MaxConnections),
	}
}

// HandleConnection registers a new transport session. The connection starts
// in CONNECTING, immediately advances to AUTHENTICATING and arms the auth
// deadline timer.
func (g *Gateway) HandleConnection(connectionID, ipAddress string, socket Socket) ConnectResult {
	c := &Connection{
		ID:          connectionID,
		IPAddress:   ipAddress,
		ConnectedAt: time.Now(),
		state:       StateConnecting,
		limiter:     newWindowLimiter(g.cfg.RateLimit.MaxMessages, g.cfg.RateLimit.Window()),
		socket:      socket,
	}

	if !g.conns.add(c) {
		metrics.ConnectionsRejected.WithLabelValues("capacity").Inc()
		return ConnectResult{Success: false, Error: errMaxConnections}
	}

	c.transition(StateAuthenticating)
	c.mu.Lock()
	c.authTimer = time.AfterFunc(g.cfg.AuthTimeout(), func() {
		g.expireAuth(connectionID)
	})
	c.mu.Unlock()

	g.logger.Debug().
		Str("connection_id", connectionID).
		Str("ip", ipAddress).
		Msg("connection registered")

	return ConnectResult{
		Success:       true,
		RequiresAuth:  true,
		AuthTimeoutMs: g.cfg.AuthTimeoutMs,
	}
}

// expireAuth fires when the auth deadline elapses before authentication
func (g *Gateway) expireAuth(connectionID string) {
	c, ok := g.conns.get(connectionID)
	if !ok {
		return
	}

	c.mu.Lock()
	pending := c.state == StateConnecting || c.state == StateAuthenticating
	c.mu.Unlock()
	if !pending {
		return
	}

	metrics.AuthTimeouts.Inc()
	g.logger.Info().
		Str("connection_id", connectionID).
		Msg("closing connection: authentication deadline elapsed")
	g.forceClose(c, errAuthTimeout)
}

// forceClose closes the transport with a policy-violation code and removes
// the connection.
func (g *Gateway) forceClose(c *Connection, reason string) {
	c.mu.Lock()
	socket := c.socket
	c.mu.Unlock()

	if socket != nil {
		_ = socket.Close(PolicyViolation, reason)
	}
	g.HandleDisconnection(c.ID)
}

// Authenticate validates a client token. Failure leaves the connection open
// for retry before the deadline unless MaxFailedAttempts is exceeded.
func (g *Gateway) Authenticate(connectionID, token string) AuthResult {
	c, ok := g.conns.get(connectionID)
	if !ok {
		return AuthResult{Success: false, Error: errUnknownConn}
	}

	identity, err := g.verifier.Validate(token)
	if err != nil {
		metrics.AuthFailures.Inc()

		c.mu.Lock()
		c.failedAuths++
		exceeded := g.authCfg.MaxFailedAttempts > 0 && c.failedAuths >= g.authCfg.MaxFailedAttempts
		c.mu.Unlock()

		if exceeded {
			g.logger.Info().
				Str("connection_id", connectionID).
				Int("attempts", g.authCfg.MaxFailedAttempts).
				Msg("closing connection: repeated authentication failures")
			g.forceClose(c, errTooManyAuth)
		}
		return AuthResult{Success: false, Error: errInvalidToken}
	}

	c.cancelAuthTimer()
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return AuthResult{Success: false, Error: errUnknownConn}
	}
	c.state = StateAuthenticated
	c.userID = identity.UserID
	c.permissions = identity.Permissions
	c.state = StateActive
	c.mu.Unlock()

	g.logger.Debug().
		Str("connection_id", connectionID).
		Str("user_id", identity.UserID).
		Msg("connection authenticated")

	return AuthResult{
		Success:     true,
		UserID:      identity.UserID,
		Permissions: identity.Permissions,
	}
}

// HandleMessage rate-limits, translates and publishes one inbound wire
// message. Only ACTIVE connections may send.
func (g *Gateway) HandleMessage(connectionID string, msg WireMessage) MessageResult {
	c, ok := g.conns.get(connectionID)
	if !ok {
		return MessageResult{Accepted: false, Error: errUnknownConn}
	}
	if c.State() != StateActive {
		return MessageResult{Accepted: false, Error: errNotAuthorized}
	}

	if !c.limiter.allow() {
		metrics.MessagesRateLimited.Inc()
		return MessageResult{Accepted: false, Error: errRateLimited}
	}

	ev, known := translate(msg, c.UserID())
	if !known {
		return MessageResult{Accepted: false, Error: errUnknownType}
	}

	if _, err := g.bus.Publish(ev); err != nil {
		g.logger.Warn().
			Str("connection_id", connectionID).
			Str("wire_type", msg.Type).
			Err(err).
			Msg("publish rejected")
		return MessageResult{Accepted: false, Error: publishError(err)}
	}

	metrics.MessagesReceived.Inc()
	return MessageResult{Accepted: true}
}

func publishError(err error) string {
	switch {
	case strings.Contains(err.Error(), "maximum size"):
		return "Event too large"
	case err == bus.ErrNotRunning:
		return "Service unavailable"
	default:
		return "Event rejected"
	}
}

// SubscribeToEvents creates bus subscriptions on behalf of a connection.
// Topics are "category" or "category:type" strings. Matched events are
// pushed to the socket as serialized envelopes. Ownership is tracked for
// cascade cleanup on disconnect.
func (g *Gateway) SubscribeToEvents(connectionID string, topics []string) error {
	c, ok := g.conns.get(connectionID)
	if !ok {
		return errString(errUnknownConn)
	}
	if c.State() != StateActive {
		return errString(errNotAuthorized)
	}

	for _, topic := range topics {
		category, eventType, _ := strings.Cut(topic, ":")
		sub := &bus.Subscription{
			SubscriberID: connectionID,
			Name:         topic,
			Categories:   []event.Category{event.Category(category)},
		}
		if eventType != "" {
			sub.EventTypes = []string{eventType}
		}

		result, err := g.bus.Subscribe(sub, g.pushHandler(c))
		if err != nil {
			return err
		}

		c.mu.Lock()
		c.subscriptions = append(c.subscriptions, result.Subscription)
		c.mu.Unlock()
	}
	return nil
}

// pushHandler builds the bus handler that forwards a matched event to one
// connection's socket.
func (g *Gateway) pushHandler(c *Connection) bus.Handler {
	return func(_ context.Context, ev *event.Event) error {
		if c.State() != StateActive {
			return errString("connection not active")
		}
		return g.sendEvent(c, ev)
	}
}

func (g *Gateway) sendEvent(c *Connection, ev *event.Event) error {
	frame, err := json.Marshal(outboundFrame{Type: "event", Data: mustRaw(ev)})
	if err != nil {
		return err
	}

	c.mu.Lock()
	socket := c.socket
	c.mu.Unlock()
	if socket == nil {
		return errString("no transport")
	}
	return socket.Send(frame)
}

// BroadcastEvent pushes an event to every ACTIVE connection whose gateway
// subscriptions match it. One failed send never blocks the rest.
func (g *Gateway) BroadcastEvent(ev *event.Event) {
	for _, c := range g.conns.snapshot() {
		if c.State() != StateActive {
			continue
		}

		c.mu.Lock()
		subs := append([]*bus.Subscription(nil), c.subscriptions...)
		c.mu.Unlock()

		matched := false
		for _, sub := range subs {
			if sub.Matches(ev) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		if err := g.sendEvent(c, ev); err != nil {
			metrics.BroadcastSendFailures.Inc()
			g.logger.Warn().
				Str("connection_id", c.ID).
				Err(err).
				Msg("broadcast send failed")
		}
	}
}

// HandleDisconnection unregisters a connection, cancels its timers and
// cascades unsubscription of everything it owned. Idempotent.
func (g *Gateway) HandleDisconnection(connectionID string) {
	c := g.conns.remove(connectionID)
	if c == nil {
		return
	}

	c.cancelAuthTimer()
	c.mu.Lock()
	c.state = StateClosed
	c.subscriptions = nil
	c.mu.Unlock()

	g.bus.UnsubscribeAll(connectionID)

	g.logger.Debug().
		Str("connection_id", connectionID).
		Msg("connection removed")
}

// GetConnectionStats snapshots connection counts
func (g *Gateway) GetConnectionStats() Stats {
	counts := g.conns.countByState()
	total := 0
	for _, n := range counts {
		total += n
	}
	return Stats{
		TotalConnections:         total,
		AuthenticatedConnections: counts[string(StateActive)] + counts[string(StateAuthenticated)],
	}
}

// ConnectionCounts reports live connections per state for the metrics
// collector.
func (g *Gateway) ConnectionCounts() map[string]int {
	return g.conns.countByState()
}

type gatewayError string

func (e gatewayError) Error() string { return string(e) }

func errString(s string) error { return gatewayError(s) }
