// Package ratelimit gates a per-connection message stream.
package ratelimit

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// IntervalLimiter admits a message only if at least interval has passed since
// the last admitted one. The first message is always admitted. Rejected
// messages leave the state untouched. No burst allowance.
//
// Not safe for concurrent use; each connection owns its own limiter.
type IntervalLimiter struct {
	clock        clockwork.Clock
	interval     time.Duration
	seenFirst    bool
	lastAccepted time.Time
}

// NewIntervalLimiter creates a limiter enforcing interval between messages.
func NewIntervalLimiter(clock clockwork.Clock, interval time.Duration) *IntervalLimiter {
	return &IntervalLimiter{clock: clock, interval: interval}
}

// Allow reports whether the current message is admitted and, if so, records it.
func (l *IntervalLimiter) Allow() bool {
	now := l.clock.Now()
	if l.seenFirst && now.Sub(l.lastAccepted) < l.interval {
		return false
	}
	l.seenFirst = true
	l.lastAccepted = now
	return true
}
