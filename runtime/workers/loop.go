package workers

import (
	"chat-presence/contract"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Loop owns the lifecycle of one supervised background worker.
// Start and Stop are idempotent.
type Loop struct {
	log             *slog.Logger
	worker          contract.Worker
	restartInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLoop(log *slog.Logger, worker contract.Worker, restartInterval time.Duration) *Loop {
	return &Loop{log: log, worker: worker, restartInterval: restartInterval}
}

// Start launches the worker, it returns false when already running.
func (l *Loop) Start(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return false
	}

	sup := NewSupervisor(l.log, l.restartInterval).Add(l.worker)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel, l.done = cancel, done

	go func() {
		sup.Run(runCtx)
		cancel()
		l.mu.Lock()
		if l.done == done {
			l.cancel, l.done = nil, nil
		}
		l.mu.Unlock()
		close(done)
	}()

	l.log.Info("Background loop started", "worker", contract.GetWorkerName(l.worker))
	return true
}

// Stop cancels the worker and waits for its current iteration to end.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if done == nil {
		return
	}

	cancel()
	<-done
	l.log.Info("Background loop stopped", "worker", contract.GetWorkerName(l.worker))
}

func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done != nil
}
