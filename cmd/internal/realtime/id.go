package realtime

import (
	"time"

	"tasktrack/cmd/identity/ids"
)

// NewSessionID returns a ULID for a websocket session, so session ids sort by connect time in logs.
func NewSessionID(now time.Time) string {
	id, err := ids.NewULID(now)
	if err != nil {
		return NewRandomHex(13)
	}
	return id
}

// NewEnvelopeID returns a ULID for an outbound envelope.
func NewEnvelopeID(now time.Time) string {
	id, err := ids.NewULID(now)
	if err != nil {
		return NewRandomHex(13)
	}
	return id
}
