// Package authenvelope is the NIP-42 ["AUTH", ...] frame: relay-to-client
// carries a bare challenge string, client-to-relay carries a signed
// kind-22242 event.
package authenvelope

import (
	"encoding/json"

	"nostrium.dev/encoders/event"
	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "AUTH"

// Challenge is the relay-to-client form: ["AUTH", challenge].
type Challenge struct {
	Challenge string
}

// Marshal renders the relay-to-client challenge frame.
func (c *Challenge) Marshal() ([]byte, error) { return json.Marshal([]any{L, c.Challenge}) }

// Response is the client-to-relay form: ["AUTH", event_object].
type Response struct {
	Event *event.E
}

// Parse decodes the remainder of an ["AUTH", ...] frame. It always treats
// the payload as an event object; a bare-string payload fails to decode and
// is returned as an error.
func Parse(rest []json.RawMessage) (*Response, error) {
	if len(rest) != 1 {
		return nil, errorf.E("AUTH expects exactly one element, got %d", len(rest))
	}
	ev := event.New()
	if err := json.Unmarshal(rest[0], ev); err != nil {
		return nil, err
	}
	return &Response{Event: ev}, nil
}

// Marshal renders the client-to-relay AUTH response frame.
func (r *Response) Marshal() ([]byte, error) { return json.Marshal([]any{L, r.Event}) }
