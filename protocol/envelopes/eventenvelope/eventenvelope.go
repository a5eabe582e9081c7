// Package eventenvelope is the ["EVENT", ...] wire frame, both the
// client-to-relay publish form and the relay-to-client subscription-result
// form.
package eventenvelope

import (
	"encoding/json"

	"nostrium.dev/encoders/event"
	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "EVENT"

// Submission is the client-to-relay form: ["EVENT", event_object].
type Submission struct {
	Event *event.E
}

// ParseSubmission decodes the remainder of an ["EVENT", ...] frame as a
// publish request.
func ParseSubmission(rest []json.RawMessage) (*Submission, error) {
	if len(rest) != 1 {
		return nil, errorf.E("EVENT submission expects exactly one element, got %d", len(rest))
	}
	ev := event.New()
	if err := json.Unmarshal(rest[0], ev); err != nil {
		return nil, err
	}
	return &Submission{Event: ev}, nil
}

// Marshal renders an ["EVENT", event_object] frame.
func (s *Submission) Marshal() ([]byte, error) {
	return json.Marshal([]any{L, s.Event})
}

// Result is the relay-to-client form: ["EVENT", sub_id, event_object].
type Result struct {
	SubscriptionId string
	Event          *event.E
}

// ParseResult decodes the remainder of a subscription-result frame.
func ParseResult(rest []json.RawMessage) (*Result, error) {
	if len(rest) != 2 {
		return nil, errorf.E("EVENT result expects two elements, got %d", len(rest))
	}
	var subID string
	if err := json.Unmarshal(rest[0], &subID); err != nil {
		return nil, err
	}
	ev := event.New()
	if err := json.Unmarshal(rest[1], ev); err != nil {
		return nil, err
	}
	return &Result{SubscriptionId: subID, Event: ev}, nil
}

// Marshal renders an ["EVENT", sub_id, event_object] frame.
func (r *Result) Marshal() ([]byte, error) {
	return json.Marshal([]any{L, r.SubscriptionId, r.Event})
}
