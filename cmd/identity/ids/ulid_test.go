package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewULIDEncodesTimestamp(t *testing.T) {
	now := time.Date(2026, time.March, 14, 18, 0, 0, 0, time.UTC)

	s, err := NewULID(now)
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}

	parsed, err := ulid.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	if got := ulid.Time(parsed.Time()); !got.Equal(now.Truncate(time.Millisecond)) {
		t.Fatalf("timestamp = %v, want %v", got, now)
	}
}

func TestNewULIDsSortByTime(t *testing.T) {
	t0 := time.Now().UTC()
	a, err := NewULID(t0)
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	b, err := NewULID(t0.Add(time.Second))
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	if !(a < b) {
		t.Fatalf("ids not time-ordered: %q >= %q", a, b)
	}
}
