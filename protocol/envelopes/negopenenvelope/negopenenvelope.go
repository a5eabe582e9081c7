// Package negopenenvelope is the negentropy ["NEG-OPEN", sub_id, filter,
// msg] frame that starts a reconciliation session.
package negopenenvelope

import (
	"encoding/json"

	"nostrium.dev/encoders/filter"
	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "NEG-OPEN"

// T is a parsed NEG-OPEN frame. Msg is the opaque negentropy protocol
// message, hex-encoded on the wire.
type T struct {
	SubscriptionId string
	Filter         *filter.F
	Msg            string
}

// Marshal renders a ["NEG-OPEN", sub_id, filter, msg] frame.
func (t *T) Marshal() ([]byte, error) {
	return json.Marshal([]any{L, t.SubscriptionId, t.Filter, t.Msg})
}

// Parse decodes the remainder of a NEG-OPEN frame.
func Parse(rest []json.RawMessage) (*T, error) {
	if len(rest) != 3 {
		return nil, errorf.E("NEG-OPEN expects three elements, got %d", len(rest))
	}
	var subID string
	if err := json.Unmarshal(rest[0], &subID); err != nil {
		return nil, err
	}
	f := filter.New()
	if err := json.Unmarshal(rest[1], f); err != nil {
		return nil, err
	}
	var msg string
	if err := json.Unmarshal(rest[2], &msg); err != nil {
		return nil, err
	}
	return &T{SubscriptionId: subID, Filter: f, Msg: msg}, nil
}
