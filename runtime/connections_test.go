package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func TestConnectionTracker_Lifecycle(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	clock := newFakeClock()
	tracker := NewConnectionTracker(testLogger(), store).WithClock(clock.Now)
	ctx := context.Background()

	gomock.InOrder(
		store.EXPECT().Put(gomock.Any(), contract.TableConnections, "conn-1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ string, r contract.Record) error {
				req.Equal("10.0.0.1", r.String("remoteAddr"))
				req.Equal(clock.Now().UnixMilli(), r.Int("connectedAt"))
				return nil
			}),
		store.EXPECT().Update(gomock.Any(), contract.TableConnections, "conn-1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ string, patch contract.Record) error {
				req.Equal("p1", patch.String("participantId"))
				return nil
			}),
		store.EXPECT().Update(gomock.Any(), contract.TableConnections, "conn-1", gomock.Any()).Return(nil),
		store.EXPECT().Delete(gomock.Any(), contract.TableConnections, "conn-1").Return(nil),
	)

	req.NoError(tracker.Open(ctx, domain.Connection{ID: "conn-1", RemoteAddr: "10.0.0.1", UserAgent: "test"}))
	req.NoError(tracker.Bind(ctx, "conn-1", "p1"))
	req.NoError(tracker.Touch(ctx, "conn-1"))
	req.NoError(tracker.Close(ctx, "conn-1"))
}

func TestConnectionTracker_Wraps_Store_Errors(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	tracker := NewConnectionTracker(testLogger(), store)
	boom := fmt.Errorf("boom")

	store.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(boom).Times(1)

	req.ErrorIs(tracker.Touch(context.Background(), "conn-1"), boom)
}

func TestConnectionTracker_PurgeStale(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	clock := newFakeClock()
	tracker := NewConnectionTracker(testLogger(), store).WithClock(clock.Now)
	now := clock.Now()

	store.EXPECT().Scan(gomock.Any(), contract.TableConnections).Return([]contract.Record{
		{"id": "fresh", "lastActivityAt": now.Add(-time.Hour).UnixMilli()},
		{"id": "stale", "lastActivityAt": float64(now.Add(-25 * time.Hour).UnixMilli())},
		{"id": "stale-no-activity", "connectedAt": now.Add(-48 * time.Hour).UnixMilli()},
		{"id": "stale-locked", "lastActivityAt": now.Add(-30 * time.Hour).UnixMilli()},
	}, nil).Times(1)
	store.EXPECT().Delete(gomock.Any(), contract.TableConnections, "stale").Return(nil).Times(1)
	store.EXPECT().Delete(gomock.Any(), contract.TableConnections, "stale-no-activity").Return(nil).Times(1)
	store.EXPECT().Delete(gomock.Any(), contract.TableConnections, "stale-locked").Return(fmt.Errorf("conflict")).Times(1)

	purged, err := tracker.PurgeStale(context.Background(), 24*time.Hour)

	req.NoError(err)
	req.Equal(2, purged)
}
