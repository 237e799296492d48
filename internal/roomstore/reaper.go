package roomstore

import (
	"context"
	"log/slog"
	"time"
)

// Reaper - background sweep evicting rooms idle past the retention window.
// It runs outside any request path; the store locks one room at a time.
type Reaper struct {
	logger    *slog.Logger
	store     *Store
	retention time.Duration
	interval  time.Duration
}

func NewReaper(logger *slog.Logger, store *Store, retention, interval time.Duration) *Reaper {
	return &Reaper{
		logger:    logger.With("component", "reaper"),
		store:     store,
		retention: retention,
		interval:  interval,
	}
}

// Run - sweeps on a fixed period until the context is canceled.
func (that *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(that.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if evicted := that.store.Sweep(now.Add(-that.retention)); evicted > 0 {
				that.logger.Info("evicted idle rooms", "count", evicted)
			}
		}
	}
}
