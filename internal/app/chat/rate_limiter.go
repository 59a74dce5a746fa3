package chat

import (
	"sync"
	"time"
)

// RateLimiter is a sliding window over recent sends. A non-positive limit
// disables it.
type RateLimiter struct {
	mu       sync.Mutex
	history  []time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow() bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	fresh := rl.history[:0]
	for _, t := range rl.history {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history = fresh
		return false
	}
	rl.history = append(fresh, now)
	return true
}

// Reset forgets every recorded send.
func (rl *RateLimiter) Reset() {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	rl.history = nil
	rl.mu.Unlock()
}
