// Package subscription wraps the client-chosen sub_id string that keys a
// connection's filter mapping (NIP-01 §3.4) and the length bound the
// relay-policy pipeline stage enforces on it.
package subscription

import "nostrium.dev/utils/errorf"

// Id is a client-chosen subscription identifier, unique per connection.
type Id string

// DefaultMaxLen bounds sub_id length when the relay's own configuration
// leaves limitation.max_subid_length unset.
const DefaultMaxLen = 64

// ErrTooLong marks a sub_id exceeding the configured max_subid_length.
var ErrTooLong = errorf.E("subscription id exceeds max_subid_length")

// ErrEmpty marks an empty sub_id, which NIP-01 disallows.
var ErrEmpty = errorf.E("subscription id must not be empty")

// Validate checks id against the relay's configured max_subid_length.
func Validate(id string, maxLen int) error {
	if len(id) == 0 {
		return ErrEmpty
	}
	if len(id) > maxLen {
		return ErrTooLong
	}
	return nil
}
