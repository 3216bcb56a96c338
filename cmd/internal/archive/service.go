package archive

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"rally/cmd/internal/planning"
)

const (
	// DefaultInactiveFor is the retention window: sessions untouched for this
	// long are archived on the next sweep.
	DefaultInactiveFor = 72 * time.Hour

	// DefaultBatchLimit bounds a single sweep so one pass never holds the
	// store for long. The runner drains the backlog across passes.
	DefaultBatchLimit = 100
)

var ErrInvalidInput = errors.New("archive: invalid input")

// SessionStore is the slice of the planning store the sweeper needs.
type SessionStore interface {
	ArchiveSessionsBefore(ctx context.Context, cutoff time.Time, limit int, now time.Time) (int, error)
	SessionStatusCounts(ctx context.Context) (planning.StatusCounts, error)
}

// Service archives sessions that have been inactive past the retention window.
type Service struct {
	log   *slog.Logger
	store SessionStore

	inactiveFor time.Duration
	batchLimit  int
}

// Option mutates Service defaults at construction.
type Option func(*Service) error

// WithInactiveFor overrides the retention window.
func WithInactiveFor(d time.Duration) Option {
	return func(s *Service) error {
		if d <= 0 {
			return ErrInvalidInput
		}
		s.inactiveFor = d
		return nil
	}
}

// WithBatchLimit overrides the per-sweep batch size.
func WithBatchLimit(n int) Option {
	return func(s *Service) error {
		if n <= 0 {
			return ErrInvalidInput
		}
		s.batchLimit = n
		return nil
	}
}

// NewService constructs the archival service.
func NewService(log *slog.Logger, store SessionStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &Service{
		log:         log,
		store:       store,
		inactiveFor: DefaultInactiveFor,
		batchLimit:  DefaultBatchLimit,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Sweep archives one batch of sessions inactive since before now-inactiveFor.
// It returns the number of sessions transitioned; a second sweep over the
// same backlog finds nothing and returns zero.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int, error) {
	if s == nil {
		return 0, ErrInvalidInput
	}
	return s.SweepOlderThan(ctx, s.inactiveFor, now)
}

// SweepOlderThan is Sweep with an explicit window, for operator-triggered
// sweeps that want a different retention than the background runner.
func (s *Service) SweepOlderThan(ctx context.Context, inactiveFor time.Duration, now time.Time) (int, error) {
	if s == nil {
		return 0, ErrInvalidInput
	}
	if inactiveFor <= 0 {
		return 0, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	cutoff := now.Add(-inactiveFor)

	n, err := s.store.ArchiveSessionsBefore(ctx, cutoff, s.batchLimit, now)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		sessionsArchived.Add(float64(n))
		s.log.Info("archive.sweep.done", "archived", n, "cutoff", cutoff)
	}
	return n, nil
}

// Stats reports the store's session counts by status and refreshes the
// status gauges.
func (s *Service) Stats(ctx context.Context) (planning.StatusCounts, error) {
	if s == nil {
		return planning.StatusCounts{}, ErrInvalidInput
	}

	counts, err := s.store.SessionStatusCounts(ctx)
	if err != nil {
		return planning.StatusCounts{}, err
	}

	sessionsByStatus.WithLabelValues("active").Set(float64(counts.Active))
	sessionsByStatus.WithLabelValues("finalized").Set(float64(counts.Finalized))
	sessionsByStatus.WithLabelValues("archived").Set(float64(counts.Archived))

	return counts, nil
}
