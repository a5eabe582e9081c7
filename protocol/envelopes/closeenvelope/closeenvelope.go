// Package closeenvelope is the ["CLOSE", sub_id] frame that tears down a
// subscription.
package closeenvelope

import (
	"encoding/json"

	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "CLOSE"

// T is a parsed CLOSE.
type T struct {
	SubscriptionId string
}

// Parse decodes the remainder of a ["CLOSE", sub_id] frame.
func Parse(rest []json.RawMessage) (*T, error) {
	if len(rest) != 1 {
		return nil, errorf.E("CLOSE expects exactly one element, got %d", len(rest))
	}
	var subID string
	if err := json.Unmarshal(rest[0], &subID); err != nil {
		return nil, err
	}
	return &T{SubscriptionId: subID}, nil
}

// Marshal renders a ["CLOSE", sub_id] frame.
func (t *T) Marshal() ([]byte, error) { return json.Marshal([]any{L, t.SubscriptionId}) }
