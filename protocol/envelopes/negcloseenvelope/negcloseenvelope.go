// Package negcloseenvelope is the negentropy ["NEG-CLOSE", sub_id] frame
// ending a reconciliation session.
package negcloseenvelope

import (
	"encoding/json"

	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "NEG-CLOSE"

// T is a parsed NEG-CLOSE frame.
type T struct {
	SubscriptionId string
}

// Marshal renders a ["NEG-CLOSE", sub_id] frame.
func (t *T) Marshal() ([]byte, error) { return json.Marshal([]any{L, t.SubscriptionId}) }

// Parse decodes the remainder of a NEG-CLOSE frame.
func Parse(rest []json.RawMessage) (*T, error) {
	if len(rest) != 1 {
		return nil, errorf.E("NEG-CLOSE expects exactly one element, got %d", len(rest))
	}
	var subID string
	if err := json.Unmarshal(rest[0], &subID); err != nil {
		return nil, err
	}
	return &T{SubscriptionId: subID}, nil
}
