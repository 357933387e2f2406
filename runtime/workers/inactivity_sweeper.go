package workers

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"context"
	"log/slog"
	"time"
)

const (
	DefaultSweepInterval       = 60 * time.Second
	DefaultInactivityThreshold = 5 * time.Minute
)

var _ contract.Worker = (*InactivitySweeper)(nil)

// InactivitySweeper demotes idle ONLINE participants to AWAY on every tick.
type InactivitySweeper struct {
	log       *slog.Logger
	registry  contract.IPresenceRegistry
	notifier  contract.StatusNotifier
	presence  contract.PresenceBroadcaster
	interval  time.Duration
	threshold time.Duration
}

func NewInactivitySweeper(
	log *slog.Logger,
	registry contract.IPresenceRegistry,
	notifier contract.StatusNotifier,
	presence contract.PresenceBroadcaster,
	interval, threshold time.Duration,
) *InactivitySweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if threshold <= 0 {
		threshold = DefaultInactivityThreshold
	}
	return &InactivitySweeper{
		log:       log,
		registry:  registry,
		notifier:  notifier,
		presence:  presence,
		interval:  interval,
		threshold: threshold,
	}
}

func (w *InactivitySweeper) Run(ctx context.Context) error {
	w.log.Info("Starting inactivity sweeper", "interval", w.interval, "threshold", w.threshold)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many participants were demoted.
// A single presence broadcast follows a pass that demoted anyone.
func (w *InactivitySweeper) Sweep(ctx context.Context) int {
	demoted := 0
	for _, id := range w.registry.FindIdle(w.threshold) {
		if w.demote(ctx, id) {
			demoted++
		}
	}
	if demoted > 0 {
		w.presence.BroadcastPresence()
		w.log.Info("Idle participants set away", "count", demoted)
	}
	return demoted
}

func (w *InactivitySweeper) demote(ctx context.Context, id string) bool {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Demotion panicked", "participant_id", id, "panic", r)
		}
	}()

	p, ok := w.registry.Demote(id, w.threshold)
	if !ok {
		w.log.Debug("Participant no longer idle", "participant_id", id)
		return false
	}
	if err := w.notifier.NotifyStatusChange(ctx, p, domain.StatusOnline, true); err != nil {
		w.log.Warn("Automatic status notification failed", "participant_id", id, "error", err)
	}
	return true
}
