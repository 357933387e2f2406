// Package domain contains core concepts of the presence channel.
// This file defines Participant entities and their presence statuses.
// No runtime, network, or storage logic should be added here.
package domain

import "time"

// Status is the presence state of a participant.
type Status string

const (
	StatusOnline       Status = "ONLINE"
	StatusAway         Status = "AWAY"
	StatusOffline      Status = "OFFLINE"
	StatusDoNotDisturb Status = "DO_NOT_DISTURB"
)

// SystemID identifies envelopes and messages produced by the server itself.
const (
	SystemID   = "system"
	SystemName = "System"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusOffline, StatusDoNotDisturb:
		return true
	default:
		return false
	}
}

// Participant is one identified user of the channel.
// Records are never evicted: a disconnected participant stays OFFLINE.
type Participant struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"displayName"`
	Status         Status    `json:"status"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// IdleSince reports whether the participant is ONLINE and has been inactive
// for strictly longer than threshold at instant now.
func (p Participant) IdleSince(now time.Time, threshold time.Duration) bool {
	return p.Status == StatusOnline && now.Sub(p.LastActivityAt) > threshold
}
