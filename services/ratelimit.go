package services

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// RateLimitWindow / RateLimitBudget: 5 admitted calls per 10s per
	// (actor, target) pair.
	RateLimitWindow = 10 * time.Second
	RateLimitBudget = 5

	// rateLimitCleanupThreshold is the minimum map size before a cleanup
	// pass runs.
	rateLimitCleanupThreshold = 500
)

type rateLimitEntry struct {
	count         int
	windowResetAt time.Time
}

// TapRateLimiter is a fixed-window admission controller keyed by
// (actorID, targetID). Entries are ephemeral and pruned inline once the map
// grows past rateLimitCleanupThreshold; losing state on restart is acceptable
// (best-effort abuse mitigation, not a security boundary).
type TapRateLimiter struct {
	entries map[string]*rateLimitEntry
	mu      sync.Mutex
	window  time.Duration
	budget  int
	clock   clockwork.Clock
}

// NewTapRateLimiter creates a limiter with the given window and budget. The
// clock is injected so tests can drive time deterministically.
func NewTapRateLimiter(window time.Duration, budget int, clock clockwork.Clock) *TapRateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TapRateLimiter{
		entries: make(map[string]*rateLimitEntry),
		window:  window,
		budget:  budget,
		clock:   clock,
	}
}

// Allow admits or rejects one attempt for the (actor, target) pair. A fresh
// or expired window resets to count=1 and admits; within a window the attempt
// is admitted only while count ≤ budget. Rejected attempts still consume
// nothing beyond the counter bump, so the caller must not double count them.
func (l *TapRateLimiter) Allow(actorID, targetID string) bool {
	key := actorID + "|" + targetID
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > rateLimitCleanupThreshold {
		for k, e := range l.entries {
			if !now.Before(e.windowResetAt) {
				delete(l.entries, k)
			}
		}
	}

	e, ok := l.entries[key]
	if !ok || !now.Before(e.windowResetAt) {
		l.entries[key] = &rateLimitEntry{count: 1, windowResetAt: now.Add(l.window)}
		return true
	}

	e.count++
	return e.count <= l.budget
}
