package gateway

import (
	"sync"
	"time"
)

// windowLimiter is a fixed-window rate limiter. The window resets once its
// duration has elapsed since the window start, whether or not the limit was
// hit in between.
type windowLimiter struct {
	mu          sync.Mutex
	max         int
	window      time.Duration
	windowStart time.Time
	count       int
	now         func() time.Time
}

func newWindowLimiter(max int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// allow accounts one message and reports whether it fits in the current
// window.
func (l *windowLimiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}
	if l.count >= l.max {
		return false
	}
	l.count++
	return true
}
