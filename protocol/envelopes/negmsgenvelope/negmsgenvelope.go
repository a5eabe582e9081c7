// Package negmsgenvelope is the negentropy ["NEG-MSG", sub_id, msg]
// turn-taking frame, exchanged in both directions during reconciliation.
package negmsgenvelope

import (
	"encoding/json"

	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "NEG-MSG"

// T is a parsed NEG-MSG frame.
type T struct {
	SubscriptionId string
	Msg            string
}

// Marshal renders a ["NEG-MSG", sub_id, msg] frame.
func (t *T) Marshal() ([]byte, error) { return json.Marshal([]any{L, t.SubscriptionId, t.Msg}) }

// Parse decodes the remainder of a NEG-MSG frame.
func Parse(rest []json.RawMessage) (*T, error) {
	if len(rest) != 2 {
		return nil, errorf.E("NEG-MSG expects two elements, got %d", len(rest))
	}
	var t T
	if err := json.Unmarshal(rest[0], &t.SubscriptionId); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rest[1], &t.Msg); err != nil {
		return nil, err
	}
	return &t, nil
}
