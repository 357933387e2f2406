package contract

import "time"

// Logical tables and their secondary indexes.
const (
	TableParticipants = "participants"
	TableConnections  = "connections"
	TableMessages     = "messages"
	TableArchives     = "archives"

	IndexDisplayName   = "displayName"
	IndexParticipantID = "participantId"
	IndexSessionID     = "sessionId"
	IndexChannel       = "channel"

	// Channel is the value of the channel index, the system serves a single channel.
	Channel = "main"
)

// Indexes lists the indexed fields per table.
var Indexes = map[string][]string{
	TableParticipants: {IndexDisplayName},
	TableConnections:  {IndexParticipantID},
	TableMessages:     {IndexSessionID},
	TableArchives:     {IndexChannel},
}

func (r Record) String(key string) string {
	v, _ := r[key].(string)
	return v
}

// Int reads a numeric field whatever the numeric type chosen by the backend decoder.
func (r Record) Int(key string) int64 {
	switch v := r[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float32:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Time reads a field holding Unix milliseconds.
func (r Record) Time(key string) time.Time {
	ms := r.Int(key)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
