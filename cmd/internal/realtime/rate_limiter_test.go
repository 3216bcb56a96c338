package realtime

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinWindow(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if !rl.Allow(now) {
			t.Fatalf("event %d should be allowed", i)
		}
	}
	if rl.Allow(now) {
		t.Fatalf("fourth event within the window should be denied")
	}
}

func TestRateLimiterRecoversAfterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Now().UTC()

	rl.Allow(now)
	rl.Allow(now)
	if rl.Allow(now) {
		t.Fatalf("should be saturated")
	}

	later := now.Add(1100 * time.Millisecond)
	if !rl.Allow(later) {
		t.Fatalf("window should have slid past the old events")
	}
}
