package store

import (
	"sync"
	"time"
)

// Timeline hands out per-room timestamps that never decrease, even when the
// wall clock steps backwards. Stamps are truncated to the backend's precision
// so that what Append returns equals what History later reads.
type Timeline struct {
	mu        sync.Mutex
	now       func() time.Time
	precision time.Duration
	last      map[string]time.Time
}

// NewTimeline builds a timeline. A nil now falls back to time.Now.
func NewTimeline(now func() time.Time, precision time.Duration) *Timeline {
	if now == nil {
		now = time.Now
	}
	if precision <= 0 {
		precision = time.Nanosecond
	}
	return &Timeline{
		now:       now,
		precision: precision,
		last:      make(map[string]time.Time),
	}
}

// Stamp returns the creation time for the next message in room.
func (t *Timeline) Stamp(room string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts := t.now().UTC().Truncate(t.precision)
	if prev, ok := t.last[room]; ok && ts.Before(prev) {
		ts = prev
	}
	t.last[room] = ts
	return ts
}

// Known reports whether the room already has a stamp.
func (t *Timeline) Known(room string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.last[room]
	return ok
}

// Observe seeds the timeline with an already stored timestamp, so a restarted
// process does not stamp below what is on disk.
func (t *Timeline) Observe(room string, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.last[room]; !ok || ts.After(prev) {
		t.last[room] = ts.UTC()
	}
}
