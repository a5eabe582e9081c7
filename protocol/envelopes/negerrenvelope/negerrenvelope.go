// Package negerrenvelope is the negentropy ["NEG-ERR", sub_id, msg] frame
// reporting a reconciliation-session failure.
package negerrenvelope

import (
	"encoding/json"

	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "NEG-ERR"

// T is a parsed NEG-ERR frame.
type T struct {
	SubscriptionId string
	Msg            string
}

// New builds a NEG-ERR frame.
func New(subID, msg string) *T { return &T{SubscriptionId: subID, Msg: msg} }

// Marshal renders a ["NEG-ERR", sub_id, msg] frame.
func (t *T) Marshal() ([]byte, error) { return json.Marshal([]any{L, t.SubscriptionId, t.Msg}) }

// Parse decodes the remainder of a NEG-ERR frame.
func Parse(rest []json.RawMessage) (*T, error) {
	if len(rest) != 2 {
		return nil, errorf.E("NEG-ERR expects two elements, got %d", len(rest))
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
