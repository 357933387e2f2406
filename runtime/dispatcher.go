package runtime

import (
	"chat-presence/contract"
	"chat-presence/delivery"
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"
	"chat-presence/moderation"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const DefaultHistoryLimit = 50

var (
	_ contract.IDispatcher         = (*Dispatcher)(nil)
	_ contract.StatusNotifier      = (*Dispatcher)(nil)
	_ contract.PresenceBroadcaster = (*Dispatcher)(nil)
)

// Dispatcher applies participant actions to the registry and the session
// and emits the resulting events, directly or through the queue.
type Dispatcher struct {
	log          *slog.Logger
	registry     *Registry
	session      *Session
	producer     contract.Producer
	store        contract.Store
	broadcaster  contract.Broadcaster
	tracker      contract.IConnectionTracker
	moderator    *moderation.Moderator
	historyLimit int
}

func NewDispatcher(
	log *slog.Logger,
	registry *Registry,
	session *Session,
	producer contract.Producer,
	store contract.Store,
	broadcaster contract.Broadcaster,
	tracker contract.IConnectionTracker,
	moderator *moderation.Moderator,
	historyLimit int,
) *Dispatcher {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Dispatcher{
		log:          log,
		registry:     registry,
		session:      session,
		producer:     producer,
		store:        store,
		broadcaster:  broadcaster,
		tracker:      tracker,
		moderator:    moderator,
		historyLimit: historyLimit,
	}
}

// Register binds connectionID to the participant named displayName,
// reusing a known identity when the name was seen before.
func (d *Dispatcher) Register(ctx context.Context, connectionID, displayName string) (domain.Participant, error) {
	cmd := domain.RegisterCommand{DisplayName: displayName}
	if err := cmd.Validate(); err != nil {
		return domain.Participant{}, errors.ErrEmptyDisplayName
	}

	now := d.registry.Now()
	candidate := domain.Participant{
		ID:             uuid.NewString(),
		DisplayName:    cmd.DisplayName,
		Status:         domain.StatusOnline,
		LastActivityAt: now,
		CreatedAt:      now,
	}

	persisted := false
	if _, ok := d.registry.FindByName(cmd.DisplayName); !ok {
		if stored, found := d.lookupStored(ctx, cmd.DisplayName); found {
			candidate.ID = stored.ID
			candidate.CreatedAt = stored.CreatedAt
			persisted = true
		}
	}

	p, rejoined := d.registry.Join(candidate)
	if rejoined || persisted {
		d.mirrorStatus(ctx, p)
	} else if err := d.store.Put(ctx, contract.TableParticipants, p.ID, participantRecord(p)); err != nil {
		d.log.Warn("Participant not persisted", "participant_id", p.ID, "error", err)
	}

	if connectionID != "" {
		if err := d.tracker.Bind(ctx, connectionID, p.ID); err != nil {
			d.log.Warn("Connection not bound", "connection_id", connectionID, "participant_id", p.ID, "error", err)
		}
		d.broadcaster.SendTo(connectionID, event.Registered{ParticipantID: p.ID, DisplayName: p.DisplayName})
		d.broadcaster.SendTo(connectionID, event.NewHistory(d.session.Recent(d.historyLimit)))
	}

	d.announce(ctx, domain.JoinedText(p.DisplayName))
	d.BroadcastPresence()

	d.log.Info("Participant registered", "participant_id", p.ID, "display_name", p.DisplayName, "rejoined", rejoined || persisted)
	return p, nil
}

func (d *Dispatcher) ChangeStatus(ctx context.Context, participantID string, status domain.Status) error {
	if participantID == "" {
		return errors.ErrNotRegistered
	}
	cmd := domain.StatusChangeCommand{ParticipantID: participantID, Status: status}
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("%w: %q", errors.ErrInvalidStatus, status)
	}

	previous, ok := d.registry.SetStatus(participantID, status)
	if !ok {
		d.log.Warn("Status change for unknown participant", "participant_id", participantID)
		return fmt.Errorf("%s: %w", participantID, errors.ErrParticipantNotFound)
	}
	current, _ := d.registry.Get(participantID)

	_ = d.NotifyStatusChange(ctx, current, previous.Status, false)
	d.BroadcastPresence()
	return nil
}

// ReportActivity refreshes the activity timestamp, an AWAY participant is brought back ONLINE.
func (d *Dispatcher) ReportActivity(ctx context.Context, participantID string) error {
	if participantID == "" {
		return errors.ErrNotRegistered
	}
	p, ok := d.registry.Get(participantID)
	if !ok {
		d.log.Warn("Activity for unknown participant", "participant_id", participantID)
		return fmt.Errorf("%s: %w", participantID, errors.ErrParticipantNotFound)
	}
	if p.Status == domain.StatusAway {
		return d.ChangeStatus(ctx, participantID, domain.StatusOnline)
	}
	d.registry.TouchActivity(participantID)
	return nil
}

func (d *Dispatcher) SendMessage(ctx context.Context, participantID, text string) (domain.ChatMessage, error) {
	if participantID == "" {
		return domain.ChatMessage{}, errors.ErrNotRegistered
	}
	cmd := domain.SendMessageCommand{Text: text}
	if err := cmd.Validate(); err != nil {
		return domain.ChatMessage{}, errors.ErrEmptyMessage
	}
	p, ok := d.registry.Get(participantID)
	if !ok {
		d.log.Warn("Message from unknown participant", "participant_id", participantID)
		return domain.ChatMessage{}, fmt.Errorf("%s: %w", participantID, errors.ErrParticipantNotFound)
	}

	censored, words := d.moderator.Censor(cmd.Text)
	if len(words) > 0 {
		d.log.Info("Message moderated", "participant_id", p.ID, "words", len(words))
	}

	return d.session.Append(ctx, domain.ChatMessage{
		ID:         uuid.New(),
		AuthorID:   p.ID,
		AuthorName: p.DisplayName,
		Text:       censored,
		Timestamp:  d.registry.Now(),
	}), nil
}

// TerminateChat archives the current session on behalf of participantID.
func (d *Dispatcher) TerminateChat(ctx context.Context, participantID, reason string) error {
	if participantID == "" {
		return errors.ErrNotRegistered
	}
	p, ok := d.registry.Get(participantID)
	if !ok {
		d.log.Warn("Termination from unknown participant", "participant_id", participantID)
		return fmt.Errorf("%s: %w", participantID, errors.ErrParticipantNotFound)
	}
	cmd := domain.TerminateChatCommand{Reason: reason}
	_ = cmd.Validate()

	record, archived := d.session.Terminate(ctx, cmd.Reason)
	if archived {
		d.log.Info("Chat terminated", "by", p.ID, "session_id", record.SessionID, "message_count", record.MessageCount)
	} else {
		d.log.Info("Chat terminated with empty session", "by", p.ID)
	}

	_ = d.publish(ctx, delivery.TypeChatTermination, p.ID, event.TerminationNotification{
		Type:      event.TypeTermination,
		By:        p.DisplayName,
		Reason:    cmd.Reason,
		Timestamp: d.registry.Now(),
	})
	d.announce(ctx, domain.TerminatedText(p.DisplayName, cmd.Reason))
	return nil
}

// Disconnect marks the participant OFFLINE. Unknown ids are ignored.
func (d *Dispatcher) Disconnect(ctx context.Context, participantID string) {
	if participantID == "" {
		return
	}
	if _, ok := d.registry.SetStatus(participantID, domain.StatusOffline); !ok {
		d.log.Debug("Disconnect for unknown participant", "participant_id", participantID)
		return
	}
	current, _ := d.registry.Get(participantID)

	d.mirrorStatus(ctx, current)
	d.announce(ctx, domain.LeftText(current.DisplayName))
	d.BroadcastPresence()
	d.log.Info("Participant disconnected", "participant_id", participantID)
}

// NotifyStatusChange mirrors the new status and queues the notification.
func (d *Dispatcher) NotifyStatusChange(ctx context.Context, p domain.Participant, previous domain.Status, automatic bool) error {
	d.mirrorStatus(ctx, p)

	producer := p.ID
	if automatic {
		producer = domain.SystemID
	}
	return d.publish(ctx, delivery.TypeStatusNotification, producer, event.StatusNotification{
		Type:          event.TypeStatusChange,
		ParticipantID: p.ID,
		DisplayName:   p.DisplayName,
		OldStatus:     previous,
		NewStatus:     p.Status,
		Timestamp:     d.registry.Now(),
		Automatic:     automatic,
	})
}

func (d *Dispatcher) BroadcastPresence() {
	d.broadcaster.Broadcast(event.PresenceUpdate{Participants: d.registry.ListAll()})
}

func (d *Dispatcher) Participants() []domain.Participant {
	return d.registry.ListAll()
}

func (d *Dispatcher) History(limit int) []domain.ChatMessage {
	if limit <= 0 {
		limit = d.historyLimit
	}
	return d.session.Recent(limit)
}

func (d *Dispatcher) Archives() []domain.ArchiveRecord {
	return d.session.Archives()
}

func (d *Dispatcher) FetchArchived(ctx context.Context, sessionID uuid.UUID) ([]domain.ChatMessage, error) {
	return d.session.FetchArchived(ctx, sessionID)
}

// announce publishes a system chat line. System lines are not kept in the ring.
func (d *Dispatcher) announce(ctx context.Context, text string) {
	msg := domain.NewSystemMessage(text, d.registry.Now(), d.session.ID())
	_ = d.publish(ctx, delivery.TypeChatMessage, domain.SystemID, event.FromChatMessage(msg))
}

func (d *Dispatcher) publish(ctx context.Context, typ delivery.Type, producerID string, payload any) error {
	env, err := delivery.NewEnvelope(typ, producerID, payload)
	if err != nil {
		d.log.Error("Envelope not built", "type", typ, "error", err)
		return err
	}
	if err := d.producer.Enqueue(ctx, env); err != nil {
		d.log.Warn("Envelope not enqueued", "type", typ, "producer", producerID, "error", err)
		return err
	}
	return nil
}

func (d *Dispatcher) mirrorStatus(ctx context.Context, p domain.Participant) {
	if err := d.store.Update(ctx, contract.TableParticipants, p.ID, statusPatch(p)); err != nil {
		d.log.Warn("Status mirror failed", "participant_id", p.ID, "status", p.Status, "error", err)
	}
}

func (d *Dispatcher) lookupStored(ctx context.Context, displayName string) (domain.Participant, bool) {
	records, err := d.store.QueryByIndex(ctx, contract.TableParticipants, contract.IndexDisplayName, displayName)
	if err != nil {
		d.log.Warn("Participant lookup failed", "display_name", displayName, "error", err)
		return domain.Participant{}, false
	}
	if len(records) == 0 {
		return domain.Participant{}, false
	}
	return toParticipant(records[0]), true
}
