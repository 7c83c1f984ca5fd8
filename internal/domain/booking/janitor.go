package booking

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// StaleCleaner cancels pending bookings that outlived ttl.
type StaleCleaner interface {
	CleanupStale(ctx context.Context, ttl time.Duration) (int64, error)
}

var _ StaleCleaner = (*Service)(nil)

// Janitor periodically cancels pending bookings that were never paid, so
// they stop holding rooms.
type Janitor struct {
	cleaner  StaleCleaner
	ttl      time.Duration
	interval time.Duration
}

// NewJanitor creates a Janitor that runs every interval.
func NewJanitor(cleaner StaleCleaner, ttl, interval time.Duration) *Janitor {
	return &Janitor{cleaner: cleaner, ttl: ttl, interval: interval}
}

// Run blocks until ctx is cancelled. Errors are logged and retried on the
// next tick.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	lg := zctx.From(ctx)
	n, err := j.cleaner.CleanupStale(ctx, j.ttl)
	if err != nil {
		if ctx.Err() == nil {
			lg.Error("Stale booking cleanup failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		lg.Info("Cancelled stale bookings", zap.Int64("count", n), zap.Duration("ttl", j.ttl))
	}
}
