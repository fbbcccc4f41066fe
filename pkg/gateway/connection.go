package gateway

import (
	"sync"
	"time"

	"github.com/emberworks/relay/pkg/bus"
)

// State is a connection's lifecycle position. CLOSED is terminal.
type State string

const (
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateActive         State = "active"
	StateClosed         State = "closed"
)

// PolicyViolation is the close code sent when a connection breaks protocol
// policy (auth timeout, repeated auth failures).
const PolicyViolation = 1008

// Socket is the transport half of a connection. The websocket server
// adapts its conns to this; tests use in-memory fakes.
type Socket interface {
	// Send writes one serialized frame. Implementations must be safe for
	// concurrent use.
	Send(frame []byte) error
	// Close terminates the transport with a close code and reason.
	Close(code int, reason string) error
}

// Connection tracks one transport session and its gateway state
type Connection struct {
	ID          string
	IPAddress   string
	ConnectedAt time.Time

	mu            sync.Mutex
	state         State
	userID        string
	permissions   []string
	failedAuths   int
	authTimer     *time.Timer
	limiter       *windowLimiter
	socket        Socket
	subscriptions []*bus.Subscription
}

// State returns the current lifecycle state
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the bound user, empty before authentication
func (c *Connection) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Permissions returns the permissions bound at authentication
func (c *Connection) Permissions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.permissions...)
}

// transition moves the connection to a new state. CLOSED is sticky.
func (c *Connection) transition(next State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return false
	}
	c.state = next
	return true
}

// cancelAuthTimer stops the auth deadline timer if armed
func (c *Connection) cancelAuthTimer() {
	c.mu.Lock()
	t := c.authTimer
	c.authTimer = nil
	c.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

// connRegistry is the gateway's shared mutable state: every live
// connection, guarded by one RWMutex.
type connRegistry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	max   int
}

func newConnRegistry(max int) *connRegistry {
	return &connRegistry{
		conns: make(map[string]*Connection),
		max:   max,
	}
}

// add registers a connection, enforcing the capacity limit. Returns false
// when the registry is full or the ID is already present.
func (r *connRegistry) add(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.conns) >= r.max {
		return false
	}
	if _, exists := r.conns[c.ID]; exists {
		return false
	}
	r.conns[c.ID] = c
	return true
}

// remove deletes a connection by ID. Idempotent; returns the removed
// connection or nil.
func (r *connRegistry) remove(connectionID string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connectionID]
	if !ok {
		return nil
	}
	delete(r.conns, connectionID)
	return c
}

func (r *connRegistry) get(connectionID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connectionID]
	return c, ok
}

// snapshot returns all live connections for iteration without the lock held
func (r *connRegistry) snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *connRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// countByState tallies connections per lifecycle state
func (r *connRegistry) countByState() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, c := range r.conns {
		counts[string(c.State())]++
	}
	return counts
}
