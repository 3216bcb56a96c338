package realtime

import (
	"sync"
	"time"
)

// RateLimiter polices inbound frames on one subscription. The event feed is
// one-directional — clients mutate over HTTP, so any data frame they send is
// noise — but close handshakes and the odd stray frame are tolerated up to
// this budget; a connection that exceeds it is dropped as misbehaving.
//
// Sliding window over timestamps: cheap at the tiny limits involved, exact at
// the window edge (no token-bucket burst carryover).
type RateLimiter struct {
	mu     sync.Mutex
	stamps []time.Time
	limit  int
	window time.Duration
}

// NewRateLimiter constructs a RateLimiter, falling back to the package
// defaults when inputs are invalid.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{
		stamps: make([]time.Time, 0, limit+8),
		limit:  limit,
		window: window,
	}
}

// Allow reports whether a frame observed at "now" fits the budget, recording
// it when it does. The caller passes now so behavior stays deterministic in
// tests.
func (r *RateLimiter) Allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(now)

	if len(r.stamps) >= r.limit {
		return false
	}
	r.stamps = append(r.stamps, now)
	return true
}

// prune drops timestamps that fell out of the window. Caller holds r.mu.
func (r *RateLimiter) prune(now time.Time) {
	cut := now.Add(-r.window)
	kept := r.stamps[:0]
	for _, ts := range r.stamps {
		if ts.After(cut) {
			kept = append(kept, ts)
		}
	}
	r.stamps = kept
}
