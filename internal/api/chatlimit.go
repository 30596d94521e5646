package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const chatLimiterCleanupInterval = 5 * time.Minute

// chatRateLimiter enforces a fixed request quota per rolling one-minute
// window per user. Unlike the per-IP token bucket, the chat quota does
// not refill continuously: a request is allowed only while fewer than
// `limit` requests fall inside the trailing window.
//
// One mutex guards the whole map. Stale users are pruned inline.
type chatRateLimiter struct {
	mu          sync.Mutex
	requests    map[uuid.UUID][]time.Time
	limit       int
	window      time.Duration
	lastCleanup time.Time

	now func() time.Time // injectable for tests
}

func newChatRateLimiter(requestsPerMinute int) *chatRateLimiter {
	return &chatRateLimiter{
		requests:    make(map[uuid.UUID][]time.Time),
		limit:       requestsPerMinute,
		window:      time.Minute,
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// allow reports whether the user may send another chat request, and
// records the request when allowed. A rejected request is not recorded,
// so being over quota does not extend the penalty.
func (rl *chatRateLimiter) allow(userID uuid.UUID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	if now.Sub(rl.lastCleanup) > chatLimiterCleanupInterval {
		for id, stamps := range rl.requests {
			recent := keepAfter(stamps, cutoff)
			if len(recent) == 0 {
				delete(rl.requests, id)
				continue
			}
			rl.requests[id] = recent
		}
		rl.lastCleanup = now
	}

	recent := keepAfter(rl.requests[userID], cutoff)
	if len(recent) >= rl.limit {
		rl.requests[userID] = recent
		return false
	}

	rl.requests[userID] = append(recent, now)
	return true
}

func keepAfter(stamps []time.Time, cutoff time.Time) []time.Time {
	out := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			out = append(out, ts)
		}
	}
	return out
}
