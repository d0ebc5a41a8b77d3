package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAdmitsBudgetThenRejects(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewTapRateLimiter(10*time.Second, 5, clock)

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow("supporter-1", "session-1"), "call %d should be admitted", i+1)
	}
	assert.False(t, limiter.Allow("supporter-1", "session-1"), "6th call in window must be rejected")
	assert.False(t, limiter.Allow("supporter-1", "session-1"), "7th call in window must be rejected")
}

func TestRateLimiterWindowExpiryResets(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewTapRateLimiter(10*time.Second, 5, clock)

	for i := 0; i < 6; i++ {
		limiter.Allow("supporter-1", "session-1")
	}

	// 9s in: still the same window.
	clock.Advance(9 * time.Second)
	assert.False(t, limiter.Allow("supporter-1", "session-1"))

	// 11s after the first call the window has expired and the budget is back.
	clock.Advance(2 * time.Second)
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow("supporter-1", "session-1"), "post-reset call %d should be admitted", i+1)
	}
	assert.False(t, limiter.Allow("supporter-1", "session-1"))
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewTapRateLimiter(10*time.Second, 5, clock)

	for i := 0; i < 6; i++ {
		limiter.Allow("supporter-1", "session-1")
	}

	assert.True(t, limiter.Allow("supporter-1", "session-2"), "different target is a different budget")
	assert.True(t, limiter.Allow("supporter-2", "session-1"), "different actor is a different budget")
}

func TestRateLimiterPrunesExpiredEntries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewTapRateLimiter(10*time.Second, 5, clock)

	for i := 0; i < rateLimitCleanupThreshold+10; i++ {
		limiter.Allow(fmt.Sprintf("supporter-%d", i), "session-1")
	}
	clock.Advance(11 * time.Second)

	// First call past the threshold with everything expired sweeps the map.
	limiter.Allow("supporter-fresh", "session-1")

	limiter.mu.Lock()
	size := len(limiter.entries)
	limiter.mu.Unlock()
	assert.Equal(t, 1, size)
}
