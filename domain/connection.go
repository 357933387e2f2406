package domain

import "time"

// Connection is one live client socket, bound to a participant once registered.
type Connection struct {
	ID             string    `json:"id"`
	ParticipantID  string    `json:"participantId,omitempty"`
	RemoteAddr     string    `json:"remoteAddr"`
	UserAgent      string    `json:"userAgent"`
	ConnectedAt    time.Time `json:"connectedAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}
