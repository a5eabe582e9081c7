// Package envelopes identifies the label (first array element) of a raw
// Nostr wire frame so the pipeline's ProtocolValidator stage can dispatch
// to the right parser without fully decoding the frame twice.
package envelopes

import (
	"bytes"
	"encoding/json"

	"nostrium.dev/utils/errorf"
)

// L is a wire envelope label, e.g. "EVENT", "REQ", "CLOSE".
type L string

// ErrUnrecognized marks a frame whose first element is not a string, or
// whose array is empty.
var ErrUnrecognized = errorf.E("unrecognized envelope")

// Identify parses just enough of raw to return its label and the
// remainder of the JSON array (everything after the label element), so
// callers can json.Unmarshal the remainder into the label-specific shape.
func Identify(raw []byte) (label L, rest []json.RawMessage, err error) {
	var arr []json.RawMessage
	if err = json.Unmarshal(raw, &arr); err != nil {
		return "", nil, err
	}
	if len(arr) == 0 {
		return "", nil, ErrUnrecognized
	}
	var first string
	if err = json.Unmarshal(arr[0], &first); err != nil {
		return "", nil, ErrUnrecognized
	}
	return L(first), arr[1:], nil
}

// TrimQuotes is a small helper label-specific packages use when decoding a
// bare JSON string element (e.g. a sub_id) without round-tripping through
// encoding/json.
func TrimQuotes(b json.RawMessage) string {
	t := bytes.Trim(b, `"`)
	return string(t)
}
