package event

import (
	"chat-presence/domain"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Name string

const (
	NameRegistered        Name = "registered"
	NameHistory           Name = "history"
	NamePresenceUpdate    Name = "presence_update"
	NameMessage           Name = "message"
	NameNotification      Name = "notification"
	NameSessionTerminated Name = "session_terminated"
	NameError             Name = "error"
)

const (
	TypeStatusChange = "status_change_notification"
	TypeTermination  = "chat_termination_notification"
)

// Outbound is anything pushed to connected clients.
type Outbound interface {
	EventName() Name
}

type Registered struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
}

func (Registered) EventName() Name { return NameRegistered }

type History struct {
	Messages []Message `json:"messages"`
}

func (History) EventName() Name { return NameHistory }

type PresenceUpdate struct {
	Participants []domain.Participant `json:"participants"`
}

func (PresenceUpdate) EventName() Name { return NamePresenceUpdate }

type Message struct {
	ID         uuid.UUID `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	SessionID  uuid.UUID `json:"sessionId"`
}

func (Message) EventName() Name { return NameMessage }

type StatusNotification struct {
	Type          string        `json:"type"`
	ParticipantID string        `json:"participantId"`
	DisplayName   string        `json:"displayName"`
	OldStatus     domain.Status `json:"oldStatus"`
	NewStatus     domain.Status `json:"newStatus"`
	Timestamp     time.Time     `json:"timestamp"`
	Automatic     bool          `json:"automatic"`
}

func (StatusNotification) EventName() Name { return NameNotification }

// TerminationNotification is the queued payload of a chat termination.
type TerminationNotification struct {
	Type      string    `json:"type"`
	By        string    `json:"by"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionTerminated struct {
	By        string    `json:"by"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (SessionTerminated) EventName() Name { return NameSessionTerminated }

type Error struct {
	Message string `json:"message"`
}

func (Error) EventName() Name { return NameError }

// Frame is the wire shape of every outbound event.
type Frame struct {
	Event Name `json:"event"`
	Data  any  `json:"data"`
}

func Encode(e Outbound) ([]byte, error) {
	return json.Marshal(Frame{Event: e.EventName(), Data: e})
}

func FromChatMessage(m domain.ChatMessage) Message {
	return Message{
		ID:         m.ID,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Text:       m.Text,
		Timestamp:  m.Timestamp,
		SessionID:  m.SessionID,
	}
}

func NewHistory(messages []domain.ChatMessage) History {
	return History{Messages: lo.Map(messages, func(m domain.ChatMessage, _ int) Message {
		return FromChatMessage(m)
	})}
}
