package httpserver

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobalConnectionLimiter_AcquireRelease(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(3)

	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.False(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())

	limiter.Release()
	assert.True(t, limiter.Acquire())
}

func TestGlobalConnectionLimiter_Concurrent(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(100)
	var successCount atomic.Int64

	start := make(chan struct{})
	var wg sync.WaitGroup
	for range 200 {
		wg.Go(func() {
			<-start
			if limiter.Acquire() {
				successCount.Add(1)
			}
		})
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(100), successCount.Load())
	assert.Equal(t, int64(100), limiter.Current())
}

func TestIPConnectionLimiter(t *testing.T) {
	limiter := NewIPConnectionLimiter(2)

	assert.True(t, limiter.Acquire("1.1.1.1"))
	assert.True(t, limiter.Acquire("1.1.1.1"))
	assert.False(t, limiter.Acquire("1.1.1.1"))
	assert.True(t, limiter.Acquire("2.2.2.2"))

	limiter.Release("1.1.1.1")
	assert.Equal(t, 1, limiter.Count("1.1.1.1"))
	limiter.Release("1.1.1.1")
	limiter.Release("1.1.1.1")
	assert.Equal(t, 0, limiter.Count("1.1.1.1"))
}

func TestConnectionLimits_PerIPRollsBackGlobal(t *testing.T) {
	limits := NewConnectionLimits(10, 1)

	ok, _ := limits.Acquire("1.1.1.1")
	assert.True(t, ok)

	ok, reason := limits.Acquire("1.1.1.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)
	assert.Equal(t, int64(1), limits.Global().Current())
}

func TestConnectionLimits_Global(t *testing.T) {
	limits := NewConnectionLimits(1, 10)

	ok, _ := limits.Acquire("1.1.1.1")
	assert.True(t, ok)

	ok, reason := limits.Acquire("2.2.2.2")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)

	limits.Release("1.1.1.1")
	ok, _ = limits.Acquire("2.2.2.2")
	assert.True(t, ok)
	assert.Equal(t, 1, limits.PerIP().Count("2.2.2.2"))
}
