package workers

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*HeartbeatWorker)(nil)

// PresenceSource exposes a snapshot of the participants.
type PresenceSource interface {
	ListAll() []domain.Participant
}

// HeartbeatWorker samples process usage and presence counts on every tick
// and keeps the latest sample for health probes.
type HeartbeatWorker struct {
	log      *slog.Logger
	presence PresenceSource
	interval time.Duration

	mu     sync.RWMutex
	latest domain.HealthSnapshot
}

func NewHeartbeatWorker(log *slog.Logger, presence PresenceSource, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, presence: presence, interval: interval}
}

// Run samples once immediately then on every tick.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sample(p)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sample(p)
		}
	}
}

func (w *HeartbeatWorker) Latest() domain.HealthSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest
}

func (w *HeartbeatWorker) sample(p *process.Process) {
	snapshot := domain.HealthSnapshot{
		PID:       p.Pid,
		Presence:  CountByStatus(w.presence.ListAll()),
		SampledAt: time.Now().UTC(),
	}

	rss, cpu, status, err := selfStats(p)
	if err != nil {
		w.log.Warn("Failed to collect self stats", "error", err)
	} else {
		snapshot.RSSBytes, snapshot.CPUPercent, snapshot.ProcessStatus = rss, cpu, status
	}

	w.mu.Lock()
	w.latest = snapshot
	w.mu.Unlock()

	w.log.Debug("Heartbeat",
		"rss_bytes", snapshot.RSSBytes, "cpu_percent", snapshot.CPUPercent,
		"online", snapshot.Presence[domain.StatusOnline], "away", snapshot.Presence[domain.StatusAway])
}

func CountByStatus(participants []domain.Participant) map[domain.Status]int {
	return lo.CountValuesBy(participants, func(p domain.Participant) domain.Status { return p.Status })
}

func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
