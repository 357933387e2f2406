package delivery

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type routes an envelope to its handler.
type Type string

const (
	TypeChatMessage        Type = "chat_message"
	TypeStatusNotification Type = "status_notification"
	TypeChatTermination    Type = "chat_termination"
)

type Attributes struct {
	ProducerParticipantID string
	EnqueuedAt            time.Time
}

// Envelope is a typed unit of work travelling through the durable queue.
type Envelope struct {
	Type          Type
	Payload       []byte
	Attributes    Attributes
	DeliveryDelay time.Duration
}

// Received is an envelope handed out by a transport, hidden from other
// consumers until its visibility timeout elapses or it is deleted.
type Received struct {
	Envelope
	MessageID    string
	Receipt      string
	ReceiveCount int
}

func NewEnvelope(typ Type, producerID string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Envelope{
		Type:    typ,
		Payload: data,
		Attributes: Attributes{
			ProducerParticipantID: producerID,
		},
	}, nil
}

func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
