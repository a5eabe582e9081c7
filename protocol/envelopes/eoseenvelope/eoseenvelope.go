// Package eoseenvelope is the relay's ["EOSE", sub_id] end-of-stored-events
// marker, sent once a REQ's backlog has been fully delivered.
package eoseenvelope

import (
	"encoding/json"

	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "EOSE"

// T is a parsed EOSE frame.
type T struct {
	SubscriptionId string
}

// Marshal renders an ["EOSE", sub_id] frame.
func (t *T) Marshal() ([]byte, error) { return json.Marshal([]any{L, t.SubscriptionId}) }

// Parse decodes the remainder of an ["EOSE", sub_id] frame.
func Parse(rest []json.RawMessage) (*T, error) {
	if len(rest) != 1 {
		return nil, errorf.E("EOSE expects exactly one element, got %d", len(rest))
	}
	var subID string
	if err := json.Unmarshal(rest[0], &subID); err != nil {
		return nil, err
	}
	return &T{SubscriptionId: subID}, nil
}
