// Package closedenvelope is the relay's ["CLOSED", sub_id, message] frame
// rejecting or terminating a subscription, carrying a prefix-standardized
// reason.
package closedenvelope

import (
	"encoding/json"

	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "CLOSED"

// T is a parsed CLOSED frame.
type T struct {
	SubscriptionId string
	Message        string
}

// New builds a CLOSED frame.
func New(subID, message string) *T { return &T{SubscriptionId: subID, Message: message} }

// Marshal renders a ["CLOSED", sub_id, message] frame.
func (t *T) Marshal() ([]byte, error) {
	return json.Marshal([]any{L, t.SubscriptionId, t.Message})
}

// Parse decodes the remainder of a ["CLOSED", ...] frame.
func Parse(rest []json.RawMessage) (*T, error) {
	if len(rest) != 2 {
		return nil, errorf.E("CLOSED expects two elements, got %d", len(rest))
	}
	var t T
	if err := json.Unmarshal(rest[0], &t.SubscriptionId); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rest[1], &t.Message); err != nil {
		return nil, err
	}
	return &t, nil
}
