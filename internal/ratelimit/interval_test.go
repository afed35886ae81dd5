package ratelimit

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

const testInterval = 100 * time.Millisecond

func TestIntervalLimiter_FirstMessageAlwaysAllowed(t *testing.T) {
	l := NewIntervalLimiter(clockwork.NewFakeClock(), testInterval)
	assert.True(t, l.Allow())
}

func TestIntervalLimiter_BurstOnlyFirstAllowed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewIntervalLimiter(clock, testInterval)

	assert.True(t, l.Allow())
	for range 5 {
		clock.Advance(10 * time.Millisecond)
		assert.False(t, l.Allow())
	}
}

func TestIntervalLimiter_AllowsAfterInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewIntervalLimiter(clock, testInterval)

	assert.True(t, l.Allow())
	clock.Advance(testInterval)
	assert.True(t, l.Allow(), "exactly one interval later is allowed")
	clock.Advance(testInterval + time.Millisecond)
	assert.True(t, l.Allow())
}

func TestIntervalLimiter_RejectionDoesNotResetWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewIntervalLimiter(clock, testInterval)

	assert.True(t, l.Allow())
	clock.Advance(60 * time.Millisecond)
	assert.False(t, l.Allow())
	clock.Advance(40 * time.Millisecond)
	assert.True(t, l.Allow(), "window is measured from the last accepted message")
}

func TestPropertyIntervalLimiterSpacing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		clock := clockwork.NewFakeClock()
		l := NewIntervalLimiter(clock, testInterval)
		gaps := rapid.SliceOfN(rapid.IntRange(0, 250), 1, 50).Draw(t, "gaps_ms")

		var accepted []time.Time
		for _, gap := range gaps {
			clock.Advance(time.Duration(gap) * time.Millisecond)
			if l.Allow() {
				accepted = append(accepted, clock.Now())
			}
		}

		if len(accepted) == 0 {
			t.Fatalf("first message was rejected")
		}
		for i := 1; i < len(accepted); i++ {
			if d := accepted[i].Sub(accepted[i-1]); d < testInterval {
				t.Fatalf("accepted messages only %v apart", d)
			}
		}
	})
}
