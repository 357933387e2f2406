package runtime

import (
	"chat-presence/contract"
	"chat-presence/delivery"
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const DefaultRingCapacity = 100

// Session holds the recent history of the active chat session.
// The ring is the source of truth for recent messages, the store only mirrors it.
type Session struct {
	log      *slog.Logger
	mu       sync.Mutex
	id       uuid.UUID
	ring     []domain.ChatMessage
	capacity int
	archives []domain.ArchiveRecord
	store    contract.Store
	archive  contract.Archive
	producer contract.Producer
	now      func() time.Time
}

func NewSession(log *slog.Logger, store contract.Store, archive contract.Archive, producer contract.Producer, capacity int) *Session {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Session{
		log:      log,
		id:       uuid.New(),
		ring:     make([]domain.ChatMessage, 0, capacity),
		capacity: capacity,
		store:    store,
		archive:  archive,
		producer: producer,
		now:      time.Now,
	}
}

func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Load restores archive records persisted by previous runs.
func (s *Session) Load(ctx context.Context) {
	records, err := s.store.QueryByIndex(ctx, contract.TableArchives, contract.IndexChannel, contract.Channel)
	if err != nil {
		s.log.Warn("Archive records not loaded", "error", err)
		return
	}

	loaded := make([]domain.ArchiveRecord, 0, len(records))
	for _, r := range records {
		a, err := toArchiveRecord(r)
		if err != nil {
			s.log.Warn("Skipping malformed archive record", "id", r.String("id"), "error", err)
			continue
		}
		loaded = append(loaded, a)
	}
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].ArchivedAt.Before(loaded[j].ArchivedAt) })

	s.mu.Lock()
	s.archives = append(loaded, s.archives...)
	s.mu.Unlock()
	s.log.Info("Archive records loaded", "count", len(loaded))
}

// Append stores msg in the current session, evicting the oldest message when full.
// Mirroring and enqueueing are best effort, the stored message is always returned.
func (s *Session) Append(ctx context.Context, msg domain.ChatMessage) domain.ChatMessage {
	s.mu.Lock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}
	msg.SessionID = s.id
	s.ring = append(s.ring, msg)
	if overflow := len(s.ring) - s.capacity; overflow > 0 {
		s.ring = lo.Drop(s.ring, overflow)
	}
	s.mu.Unlock()

	if err := s.store.Put(ctx, contract.TableMessages, msg.ID.String(), messageRecord(msg)); err != nil {
		s.log.Warn("Message mirror failed", "message_id", msg.ID, "session_id", msg.SessionID, "error", err)
	}

	env, err := delivery.NewEnvelope(delivery.TypeChatMessage, msg.AuthorID, event.FromChatMessage(msg))
	if err != nil {
		s.log.Error("Message envelope not built", "message_id", msg.ID, "error", err)
		return msg
	}
	if err := s.producer.Enqueue(ctx, env); err != nil {
		s.log.Warn("Message not enqueued", "message_id", msg.ID, "error", err)
	}
	return msg
}

// Recent returns up to limit newest messages, oldest first.
func (s *Session) Recent(limit int) []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return []domain.ChatMessage{}
	}
	n := min(limit, len(s.ring))
	out := make([]domain.ChatMessage, n)
	copy(out, s.ring[len(s.ring)-n:])
	return out
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ring)
}

// Terminate archives the ring and starts a new session.
// An empty ring is left untouched and reported as not archived.
// Archive and store failures are logged, the reset always happens.
func (s *Session) Terminate(ctx context.Context, reason string) (domain.ArchiveRecord, bool) {
	s.mu.Lock()
	if len(s.ring) == 0 {
		s.mu.Unlock()
		return domain.ArchiveRecord{}, false
	}
	snapshot := s.ring
	record := domain.ArchiveRecord{
		SessionID:    s.id,
		ArchivedAt:   s.now().UTC(),
		MessageCount: len(snapshot),
	}
	s.ring = make([]domain.ChatMessage, 0, s.capacity)
	s.id = uuid.New()
	next := s.id
	s.mu.Unlock()

	record.Location = s.writeArchive(ctx, record, reason, snapshot)

	s.mu.Lock()
	s.archives = append(s.archives, record)
	s.mu.Unlock()

	if err := s.store.Put(ctx, contract.TableArchives, record.SessionID.String(), archiveRecord(record)); err != nil {
		s.log.Warn("Archive record mirror failed", "session_id", record.SessionID, "error", err)
	}

	s.log.Info("Session terminated",
		"session_id", record.SessionID, "next_session_id", next,
		"message_count", record.MessageCount, "location", record.Location, "reason", reason)
	return record, true
}

func (s *Session) writeArchive(ctx context.Context, record domain.ArchiveRecord, reason string, messages []domain.ChatMessage) string {
	body, err := json.Marshal(domain.ArchiveDocument{
		SessionID:    record.SessionID,
		ArchivedAt:   record.ArchivedAt,
		MessageCount: record.MessageCount,
		Reason:       reason,
		Messages:     messages,
	})
	if err != nil {
		s.log.Error("Archive document not serialized", "session_id", record.SessionID, "error", err)
		return ""
	}

	key := domain.ArchiveKey(record.SessionID, record.ArchivedAt)
	if err := s.archive.Put(ctx, key, body); err != nil {
		s.log.Error("Session archive failed", "session_id", record.SessionID, "key", key, "error", err)
		return ""
	}
	return key
}

func (s *Session) Archives() []domain.ArchiveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ArchiveRecord, len(s.archives))
	copy(out, s.archives)
	return out
}

// FetchArchived reads back the messages of a terminated session.
func (s *Session) FetchArchived(ctx context.Context, sessionID uuid.UUID) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	record, found := lo.Find(s.archives, func(a domain.ArchiveRecord) bool { return a.SessionID == sessionID })
	s.mu.Unlock()

	if !found || record.Location == "" {
		return nil, fmt.Errorf("session %s: %w", sessionID, errors.ErrArchiveNotFound)
	}

	body, err := s.archive.Get(ctx, record.Location)
	if err != nil {
		return nil, fmt.Errorf("fetch archive %s: %w", record.Location, err)
	}

	var doc domain.ArchiveDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", record.Location, err)
	}
	return doc.Messages, nil
}
