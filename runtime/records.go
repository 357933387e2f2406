package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain"

	"github.com/google/uuid"
)

func participantRecord(p domain.Participant) contract.Record {
	return contract.Record{
		"id":             p.ID,
		"displayName":    p.DisplayName,
		"status":         string(p.Status),
		"lastActivityAt": contract.Millis(p.LastActivityAt),
		"createdAt":      contract.Millis(p.CreatedAt),
	}
}

func statusPatch(p domain.Participant) contract.Record {
	return contract.Record{
		"status":         string(p.Status),
		"lastActivityAt": contract.Millis(p.LastActivityAt),
	}
}

func toParticipant(r contract.Record) domain.Participant {
	return domain.Participant{
		ID:             r.String("id"),
		DisplayName:    r.String("displayName"),
		Status:         domain.Status(r.String("status")),
		LastActivityAt: r.Time("lastActivityAt"),
		CreatedAt:      r.Time("createdAt"),
	}
}

func messageRecord(m domain.ChatMessage) contract.Record {
	return contract.Record{
		"id":         m.ID.String(),
		"sessionId":  m.SessionID.String(),
		"authorId":   m.AuthorID,
		"authorName": m.AuthorName,
		"text":       m.Text,
		"timestamp":  contract.Millis(m.Timestamp),
	}
}

func archiveRecord(a domain.ArchiveRecord) contract.Record {
	return contract.Record{
		"id":           a.SessionID.String(),
		"channel":      contract.Channel,
		"archivedAt":   contract.Millis(a.ArchivedAt),
		"messageCount": int64(a.MessageCount),
		"location":     a.Location,
	}
}

func toArchiveRecord(r contract.Record) (domain.ArchiveRecord, error) {
	sessionID, err := uuid.Parse(r.String("id"))
	if err != nil {
		return domain.ArchiveRecord{}, err
	}
	return domain.ArchiveRecord{
		SessionID:    sessionID,
		ArchivedAt:   r.Time("archivedAt"),
		MessageCount: int(r.Int("messageCount")),
		Location:     r.String("location"),
	}, nil
}

func connectionRecord(c domain.Connection) contract.Record {
	return contract.Record{
		"id":             c.ID,
		"participantId":  c.ParticipantID,
		"remoteAddr":     c.RemoteAddr,
		"userAgent":      c.UserAgent,
		"connectedAt":    contract.Millis(c.ConnectedAt),
		"lastActivityAt": contract.Millis(c.LastActivityAt),
	}
}
