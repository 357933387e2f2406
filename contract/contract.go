//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-presence/delivery"
	"chat-presence/domain"
	"chat-presence/domain/event"
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging during supervision, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Record is a flat document held by a Store.
// Every record carries its key under the "id" field.
type Record map[string]any

type Store interface {
	Put(ctx context.Context, table, key string, record Record) error
	QueryByIndex(ctx context.Context, table, index, value string) ([]Record, error)
	Update(ctx context.Context, table, key string, patch Record) error
	Delete(ctx context.Context, table, key string) error
	Scan(ctx context.Context, table string) ([]Record, error)
}

type Archive interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

type Producer interface {
	Enqueue(ctx context.Context, env delivery.Envelope) error
}

// Broadcaster pushes outbound events to live connections.
type Broadcaster interface {
	Broadcast(e event.Outbound)
	SendTo(connectionID string, e event.Outbound) bool
}

type PresenceBroadcaster interface {
	BroadcastPresence()
}

type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, p domain.Participant, previous domain.Status, automatic bool) error
}

type IPresenceRegistry interface {
	FindIdle(threshold time.Duration) []string
	Demote(id string, threshold time.Duration) (domain.Participant, bool)
}

type IConnectionTracker interface {
	Open(ctx context.Context, conn domain.Connection) error
	Bind(ctx context.Context, connectionID, participantID string) error
	Touch(ctx context.Context, connectionID string) error
	Close(ctx context.Context, connectionID string) error
	PurgeStale(ctx context.Context, maxAge time.Duration) (int, error)
}

type IDispatcher interface {
	Register(ctx context.Context, connectionID, displayName string) (domain.Participant, error)
	ChangeStatus(ctx context.Context, participantID string, status domain.Status) error
	ReportActivity(ctx context.Context, participantID string) error
	SendMessage(ctx context.Context, participantID, text string) (domain.ChatMessage, error)
	TerminateChat(ctx context.Context, participantID, reason string) error
	Disconnect(ctx context.Context, participantID string)
	Participants() []domain.Participant
	History(limit int) []domain.ChatMessage
	Archives() []domain.ArchiveRecord
	FetchArchived(ctx context.Context, sessionID uuid.UUID) ([]domain.ChatMessage, error)
}
