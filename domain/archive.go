package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ArchiveDocument is the serialized body of an archived session.
type ArchiveDocument struct {
	SessionID    uuid.UUID     `json:"sessionId"`
	ArchivedAt   time.Time     `json:"archivedAt"`
	MessageCount int           `json:"messageCount"`
	Reason       string        `json:"reason,omitempty"`
	Messages     []ChatMessage `json:"messages"`
}

// ArchiveKey returns the object key under which a session snapshot is stored.
func ArchiveKey(sessionID uuid.UUID, archivedAt time.Time) string {
	return fmt.Sprintf("chats/%s/%s-%s.json",
		sessionID,
		archivedAt.UTC().Format(time.RFC3339Nano),
		uuid.NewString())
}
