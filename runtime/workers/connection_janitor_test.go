package workers

import (
	"chat-presence/mocks"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestConnectionJanitor_Purge(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	tracker := mocks.NewMockIConnectionTracker(ctrl)

	tracker.EXPECT().PurgeStale(gomock.Any(), 24*time.Hour).Return(3, nil)

	janitor := NewConnectionJanitor(slog.Default(), tracker, time.Hour, 24*time.Hour)
	req.Equal(3, janitor.Purge(context.Background()))
}

func TestConnectionJanitor_PurgeErrorIsLogged(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	tracker := mocks.NewMockIConnectionTracker(ctrl)

	tracker.EXPECT().PurgeStale(gomock.Any(), gomock.Any()).Return(0, errors.New("scan failed"))

	janitor := NewConnectionJanitor(slog.Default(), tracker, time.Hour, 24*time.Hour)
	req.Zero(janitor.Purge(context.Background()))
}

func TestConnectionJanitor_RunTicksUntilCanceled(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	tracker := mocks.NewMockIConnectionTracker(ctrl)

	ticked := make(chan struct{}, 1)
	tracker.EXPECT().PurgeStale(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, time.Duration) (int, error) {
			select {
			case ticked <- struct{}{}:
			default:
			}
			return 0, nil
		}).
		MinTimes(1)

	janitor := NewConnectionJanitor(slog.Default(), tracker, 10*time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- janitor.Run(ctx) }()

	<-ticked
	cancel()
	req.NoError(<-done)
}
