package workers

import (
	"chat-presence/domain"
	"chat-presence/mocks"
	"chat-presence/runtime"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func sweepRegistry(now *time.Time) *runtime.Registry {
	return runtime.NewRegistry().WithClock(func() time.Time { return *now })
}

func participant(id, name string, status domain.Status, lastActivity time.Time) domain.Participant {
	return domain.Participant{
		ID:             id,
		DisplayName:    name,
		Status:         status,
		LastActivityAt: lastActivity,
		CreatedAt:      lastActivity,
	}
}

func TestInactivitySweeper_DemotesIdleAndBroadcastsOnce(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockStatusNotifier(ctrl)
	presence := mocks.NewMockPresenceBroadcaster(ctrl)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	registry := sweepRegistry(&now)

	// Given two idle ONLINE participants, one active and one idle but already AWAY
	registry.Upsert(participant("u1", "alice", domain.StatusOnline, now.Add(-10*time.Minute)))
	registry.Upsert(participant("u2", "bob", domain.StatusOnline, now.Add(-6*time.Minute)))
	registry.Upsert(participant("u3", "carol", domain.StatusOnline, now.Add(-time.Minute)))
	registry.Upsert(participant("u4", "dave", domain.StatusAway, now.Add(-time.Hour)))

	notifier.EXPECT().
		NotifyStatusChange(gomock.Any(), gomock.Any(), domain.StatusOnline, true).
		DoAndReturn(func(_ context.Context, p domain.Participant, _ domain.Status, _ bool) error {
			req.Equal(domain.StatusAway, p.Status)
			return nil
		}).
		Times(2)
	presence.EXPECT().BroadcastPresence().Times(1)

	sweeper := NewInactivitySweeper(slog.Default(), registry, notifier, presence, time.Minute, 5*time.Minute)

	// When sweeping
	demoted := sweeper.Sweep(context.Background())

	// Then only the idle ONLINE participants moved to AWAY
	req.Equal(2, demoted)
	alice, _ := registry.Get("u1")
	bob, _ := registry.Get("u2")
	carol, _ := registry.Get("u3")
	req.Equal(domain.StatusAway, alice.Status)
	req.Equal(domain.StatusAway, bob.Status)
	req.Equal(domain.StatusOnline, carol.Status)
}

func TestInactivitySweeper_NothingIdleNoBroadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockStatusNotifier(ctrl)
	presence := mocks.NewMockPresenceBroadcaster(ctrl)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	registry := sweepRegistry(&now)
	registry.Upsert(participant("u1", "alice", domain.StatusOnline, now.Add(-time.Minute)))

	// Then neither notification nor presence broadcast happen
	notifier.EXPECT().NotifyStatusChange(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	presence.EXPECT().BroadcastPresence().Times(0)

	sweeper := NewInactivitySweeper(slog.Default(), registry, notifier, presence, time.Minute, 5*time.Minute)
	req.Zero(sweeper.Sweep(context.Background()))
}

func TestInactivitySweeper_NotifierErrorDoesNotStopPass(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockStatusNotifier(ctrl)
	presence := mocks.NewMockPresenceBroadcaster(ctrl)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	registry := sweepRegistry(&now)
	registry.Upsert(participant("u1", "alice", domain.StatusOnline, now.Add(-10*time.Minute)))
	registry.Upsert(participant("u2", "bob", domain.StatusOnline, now.Add(-10*time.Minute)))

	// Given a notifier failing on every call
	notifier.EXPECT().
		NotifyStatusChange(gomock.Any(), gomock.Any(), domain.StatusOnline, true).
		Return(errors.New("queue down")).
		Times(2)
	presence.EXPECT().BroadcastPresence().Times(1)

	sweeper := NewInactivitySweeper(slog.Default(), registry, notifier, presence, time.Minute, 5*time.Minute)

	// Then both participants are still demoted
	req.Equal(2, sweeper.Sweep(context.Background()))
}

func TestInactivitySweeper_SkipsParticipantActiveAgain(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIPresenceRegistry(ctrl)
	notifier := mocks.NewMockStatusNotifier(ctrl)
	presence := mocks.NewMockPresenceBroadcaster(ctrl)

	// Given an idle candidate that became active before demotion
	registry.EXPECT().FindIdle(5 * time.Minute).Return([]string{"u1"})
	registry.EXPECT().Demote("u1", 5*time.Minute).Return(domain.Participant{}, false)
	notifier.EXPECT().NotifyStatusChange(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	presence.EXPECT().BroadcastPresence().Times(0)

	sweeper := NewInactivitySweeper(slog.Default(), registry, notifier, presence, time.Minute, 5*time.Minute)

	// Then nothing is demoted
	req.Zero(sweeper.Sweep(context.Background()))
}

func TestInactivitySweeper_PanicInDemotionIsContained(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIPresenceRegistry(ctrl)
	notifier := mocks.NewMockStatusNotifier(ctrl)
	presence := mocks.NewMockPresenceBroadcaster(ctrl)

	registry.EXPECT().FindIdle(gomock.Any()).Return([]string{"u1", "u2"})
	registry.EXPECT().Demote("u1", gomock.Any()).DoAndReturn(func(string, time.Duration) (domain.Participant, bool) {
		panic("corrupted record")
	})
	registry.EXPECT().Demote("u2", gomock.Any()).Return(domain.Participant{ID: "u2", Status: domain.StatusAway}, true)
	notifier.EXPECT().NotifyStatusChange(gomock.Any(), gomock.Any(), domain.StatusOnline, true).Return(nil)
	presence.EXPECT().BroadcastPresence().Times(1)

	sweeper := NewInactivitySweeper(slog.Default(), registry, notifier, presence, time.Minute, 5*time.Minute)

	// Then the remaining participant is still processed
	req.Equal(1, sweeper.Sweep(context.Background()))
}
