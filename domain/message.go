// Package domain contains core concepts of the presence channel.
// This file defines chat messages and archive records.
// Messages are immutable once appended to a session.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatMessage represents an immutable chat line of a session.
type ChatMessage struct {
	ID         uuid.UUID `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	SessionID  uuid.UUID `json:"sessionId"`
}

// ArchiveRecord points to the archived content of a terminated session.
// Location is empty when the archive write failed.
type ArchiveRecord struct {
	SessionID    uuid.UUID `json:"sessionId"`
	ArchivedAt   time.Time `json:"archivedAt"`
	MessageCount int       `json:"messageCount"`
	Location     string    `json:"archiveLocation"`
}

// NewSystemMessage builds a message authored by the server identity.
func NewSystemMessage(text string, at time.Time, sessionID uuid.UUID) ChatMessage {
	return ChatMessage{
		ID:         uuid.New(),
		AuthorID:   SystemID,
		AuthorName: SystemName,
		Text:       text,
		Timestamp:  at,
		SessionID:  sessionID,
	}
}

func JoinedText(displayName string) string {
	return fmt.Sprintf("%s has joined the channel", displayName)
}

func LeftText(displayName string) string {
	return fmt.Sprintf("%s has left the channel", displayName)
}

func TerminatedText(displayName, reason string) string {
	if reason == "" {
		return fmt.Sprintf("Chat terminated by %s", displayName)
	}
	return fmt.Sprintf("Chat terminated by %s: %s", displayName, reason)
}
