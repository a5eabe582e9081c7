// Package noticeenvelope is the relay's ["NOTICE", message] frame, the
// pipeline's default response when a stage rejects a frame without
// queueing a more specific reply.
package noticeenvelope

import (
	"encoding/json"

	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "NOTICE"

// T is a parsed NOTICE frame.
type T struct {
	Message string
}

// New builds a NOTICE frame.
func New(message string) *T { return &T{Message: message} }

// Marshal renders a ["NOTICE", message] frame.
func (t *T) Marshal() ([]byte, error) { return json.Marshal([]any{L, t.Message}) }

// Parse decodes the remainder of a ["NOTICE", message] frame.
func Parse(rest []json.RawMessage) (*T, error) {
	if len(rest) != 1 {
		return nil, errorf.E("NOTICE expects exactly one element, got %d", len(rest))
	}
	var msg string
	if err := json.Unmarshal(rest[0], &msg); err != nil {
		return nil, err
	}
	return &T{Message: msg}, nil
}
