// Package okenvelope is the relay's ["OK", event_id, accepted, message]
// publish-acknowledgement frame.
package okenvelope

import (
	"encoding/json"

	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "OK"

// T is a parsed OK frame.
type T struct {
	EventId  string
	Accepted bool
	Message  string
}

// New builds an OK frame.
func New(eventId string, accepted bool, message string) *T {
	return &T{EventId: eventId, Accepted: accepted, Message: message}
}

// Marshal renders an ["OK", event_id, accepted, message] frame.
func (t *T) Marshal() ([]byte, error) {
	return json.Marshal([]any{L, t.EventId, t.Accepted, t.Message})
}

// Parse decodes the remainder of an ["OK", ...] frame.
func Parse(rest []json.RawMessage) (*T, error) {
	if len(rest) != 3 {
		return nil, errorf.E("OK expects three elements, got %d", len(rest))
	}
	var t T
	if err := json.Unmarshal(rest[0], &t.EventId); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rest[1], &t.Accepted); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rest[2], &t.Message); err != nil {
		return nil, err
	}
	return &t, nil
}
