package archive

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often the background runner wakes up.
const DefaultSweepInterval = 10 * time.Minute

// Runner drives periodic sweeps until its context is canceled.
type Runner struct {
	svc      *Service
	interval time.Duration
}

// NewRunner wraps a Service in a ticker loop. A non-positive interval falls
// back to the default.
func NewRunner(svc *Service, interval time.Duration) (*Runner, error) {
	if svc == nil {
		return nil, ErrInvalidInput
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Runner{svc: svc, interval: interval}, nil
}

// Run blocks, sweeping on each tick, until ctx is canceled. Each tick drains
// the backlog: it keeps sweeping while full batches come back, so a long
// outage does not take days of ticks to catch up.
func (r *Runner) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.drain(ctx)
		}
	}
}

func (r *Runner) drain(ctx context.Context) {
	for {
		n, err := r.svc.Sweep(ctx, time.Now().UTC())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sweepFailures.Inc()
			r.svc.log.Error("archive.sweep.fail", "err", err)
			return
		}
		if n < r.svc.batchLimit {
			return
		}
	}
}
