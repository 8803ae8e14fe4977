package http

import (
	"sync"
	"time"
)

// rateLimiter allows up to limit events per fixed window.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	start  time.Time
	count  int
	now    func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: time.Minute,
		now:    time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.start.IsZero() || now.Sub(r.start) >= r.window {
		r.start = now
		r.count = 0
	}
	r.count++
	return r.count <= r.limit
}
