package archive

import (
	"context"
	"testing"
	"time"

	"rally/cmd/internal/planning"
)

func newArchiveFixture(t *testing.T) (*Service, *planning.MemoryStore) {
	t.Helper()

	store := planning.NewMemoryStore()
	svc, err := NewService(nil, store, WithInactiveFor(time.Hour), WithBatchLimit(10))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func seedSession(t *testing.T, store *planning.MemoryStore, id string, updatedAt time.Time) {
	t.Helper()

	err := store.CreateSession(context.Background(), planning.Session{
		ID:          id,
		Name:        "session " + id,
		OrganizerID: "org-" + id,
		Status:      planning.StatusActive,
		CreatedAt:   updatedAt,
		UpdatedAt:   updatedAt,
	})
	if err != nil {
		t.Fatalf("CreateSession(%s): %v", id, err)
	}
}

func TestSweepArchivesOnlyInactiveSessions(t *testing.T) {
	svc, store := newArchiveFixture(t)

	now := time.Now().UTC()
	seedSession(t, store, "stale", now.Add(-2*time.Hour))
	seedSession(t, store, "fresh", now.Add(-10*time.Minute))

	n, err := svc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("Sweep archived %d, want 1", n)
	}

	stale, err := store.GetSession(context.Background(), "stale")
	if err != nil {
		t.Fatalf("GetSession(stale): %v", err)
	}
	if stale.Status != planning.StatusArchived {
		t.Fatalf("stale status = %q, want archived", stale.Status)
	}

	fresh, err := store.GetSession(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("GetSession(fresh): %v", err)
	}
	if fresh.Status != planning.StatusActive {
		t.Fatalf("fresh status = %q, want active", fresh.Status)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	svc, store := newArchiveFixture(t)

	now := time.Now().UTC()
	seedSession(t, store, "stale", now.Add(-3*time.Hour))

	if n, err := svc.Sweep(context.Background(), now); err != nil || n != 1 {
		t.Fatalf("first sweep = (%d, %v), want (1, nil)", n, err)
	}
	if n, err := svc.Sweep(context.Background(), now); err != nil || n != 0 {
		t.Fatalf("second sweep = (%d, %v), want (0, nil)", n, err)
	}
}

func TestSweepCutoffIsExclusive(t *testing.T) {
	svc, store := newArchiveFixture(t)

	now := time.Now().UTC()
	// Exactly at the cutoff: updated_at == now - inactiveFor is NOT older
	// than the cutoff and must survive.
	seedSession(t, store, "edge", now.Add(-time.Hour))

	n, err := svc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("Sweep archived %d, want 0", n)
	}
}

func TestSweepRespectsBatchLimit(t *testing.T) {
	store := planning.NewMemoryStore()
	svc, err := NewService(nil, store, WithInactiveFor(time.Hour), WithBatchLimit(2))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	now := time.Now().UTC()
	for _, id := range []string{"a", "b", "c"} {
		seedSession(t, store, id, now.Add(-2*time.Hour))
	}

	if n, err := svc.Sweep(context.Background(), now); err != nil || n != 2 {
		t.Fatalf("first sweep = (%d, %v), want (2, nil)", n, err)
	}
	if n, err := svc.Sweep(context.Background(), now); err != nil || n != 1 {
		t.Fatalf("second sweep = (%d, %v), want (1, nil)", n, err)
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	svc, store := newArchiveFixture(t)

	now := time.Now().UTC()
	seedSession(t, store, "stale", now.Add(-2*time.Hour))
	seedSession(t, store, "fresh", now)

	if _, err := svc.Sweep(context.Background(), now); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	counts, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if counts.Active != 1 || counts.Archived != 1 || counts.Finalized != 0 {
		t.Fatalf("counts = %+v, want 1 active, 1 archived", counts)
	}
}

func TestNewServiceRejectsBadOptions(t *testing.T) {
	store := planning.NewMemoryStore()

	if _, err := NewService(nil, nil); err == nil {
		t.Fatalf("nil store should be rejected")
	}
	if _, err := NewService(nil, store, WithInactiveFor(0)); err == nil {
		t.Fatalf("zero retention should be rejected")
	}
	if _, err := NewService(nil, store, WithBatchLimit(-1)); err == nil {
		t.Fatalf("negative batch limit should be rejected")
	}
}
