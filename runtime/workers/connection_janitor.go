package workers

import (
	"chat-presence/contract"
	"context"
	"log/slog"
	"time"
)

var _ contract.Worker = (*ConnectionJanitor)(nil)

// ConnectionJanitor periodically purges connection records left behind by
// sockets that never closed cleanly.
type ConnectionJanitor struct {
	log      *slog.Logger
	tracker  contract.IConnectionTracker
	interval time.Duration
	maxAge   time.Duration
}

func NewConnectionJanitor(log *slog.Logger, tracker contract.IConnectionTracker, interval, maxAge time.Duration) *ConnectionJanitor {
	return &ConnectionJanitor{log: log, tracker: tracker, interval: interval, maxAge: maxAge}
}

func (w *ConnectionJanitor) Run(ctx context.Context) error {
	w.log.Info("Starting connection janitor", "interval", w.interval, "max_age", w.maxAge)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Purge(ctx)
		}
	}
}

func (w *ConnectionJanitor) Purge(ctx context.Context) int {
	purged, err := w.tracker.PurgeStale(ctx, w.maxAge)
	if err != nil {
		w.log.Warn("Stale connection purge failed", "error", err)
		return 0
	}
	if purged > 0 {
		w.log.Info("Stale connections purged", "count", purged)
	}
	return purged
}
