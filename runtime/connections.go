package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"context"
	"fmt"
	"log/slog"
	"time"
)

var _ contract.IConnectionTracker = (*ConnectionTracker)(nil)

// ConnectionTracker keeps one store record per live socket.
type ConnectionTracker struct {
	log   *slog.Logger
	store contract.Store
	now   func() time.Time
}

func NewConnectionTracker(log *slog.Logger, store contract.Store) *ConnectionTracker {
	return &ConnectionTracker{log: log, store: store, now: time.Now}
}

func (t *ConnectionTracker) WithClock(now func() time.Time) *ConnectionTracker {
	t.now = now
	return t
}

func (t *ConnectionTracker) Open(ctx context.Context, conn domain.Connection) error {
	now := t.now().UTC()
	if conn.ConnectedAt.IsZero() {
		conn.ConnectedAt = now
	}
	conn.LastActivityAt = now
	if err := t.store.Put(ctx, contract.TableConnections, conn.ID, connectionRecord(conn)); err != nil {
		return fmt.Errorf("open connection %s: %w", conn.ID, err)
	}
	return nil
}

func (t *ConnectionTracker) Bind(ctx context.Context, connectionID, participantID string) error {
	patch := contract.Record{
		"participantId":  participantID,
		"lastActivityAt": contract.Millis(t.now()),
	}
	if err := t.store.Update(ctx, contract.TableConnections, connectionID, patch); err != nil {
		return fmt.Errorf("bind connection %s: %w", connectionID, err)
	}
	return nil
}

func (t *ConnectionTracker) Touch(ctx context.Context, connectionID string) error {
	patch := contract.Record{"lastActivityAt": contract.Millis(t.now())}
	if err := t.store.Update(ctx, contract.TableConnections, connectionID, patch); err != nil {
		return fmt.Errorf("touch connection %s: %w", connectionID, err)
	}
	return nil
}

func (t *ConnectionTracker) Close(ctx context.Context, connectionID string) error {
	if err := t.store.Delete(ctx, contract.TableConnections, connectionID); err != nil {
		return fmt.Errorf("close connection %s: %w", connectionID, err)
	}
	return nil
}

// PurgeStale deletes connection records without activity for longer than maxAge.
// A failing delete is logged and the purge goes on.
func (t *ConnectionTracker) PurgeStale(ctx context.Context, maxAge time.Duration) (int, error) {
	records, err := t.store.Scan(ctx, contract.TableConnections)
	if err != nil {
		return 0, fmt.Errorf("scan connections: %w", err)
	}

	cutoff := t.now().Add(-maxAge)
	purged := 0
	for _, r := range records {
		lastActivity := r.Time("lastActivityAt")
		if lastActivity.IsZero() {
			lastActivity = r.Time("connectedAt")
		}
		if lastActivity.After(cutoff) {
			continue
		}
		if err := t.store.Delete(ctx, contract.TableConnections, r.String("id")); err != nil {
			t.log.Warn("Stale connection not deleted", "connection_id", r.String("id"), "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}
