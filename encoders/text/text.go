// Package text holds the raw-frame scanning helpers the wire codec and the
// pipeline's protocol-validation stage share: whitespace skipping and the
// literal/escape policy checks that stage 2 of
// the session pipeline runs against a message before it is ever handed to
// encoding/json.
package text

import (
	"bytes"
	"unicode/utf8"

	"nostrium.dev/utils/errorf"
)

// UnsupportedJSONEscape is returned when a string literal in the raw frame
// contains an escape sequence outside the small set NIP-01 wire events are
// allowed to use (\\, \", \/, \n, \r, \t, \b, \f, \u).
var UnsupportedJSONEscape = errorf.E("unsupported_json_escape")

// UnsupportedJSONLiterals is returned when the raw frame contains a bare
// literal token (true/false/null) in a context the relay's wire grammar
// does not allow, or the frame is not a top-level JSON array.
var UnsupportedJSONLiterals = errorf.E("unsupported_json_literals")

// SkipWS advances i past ASCII JSON whitespace.
func SkipWS(b []byte, i int) int {
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// allowedEscapes is the NIP-01 wire escape set.
var allowedEscapes = map[byte]bool{
	'\\': true, '"': true, 'n': true, 'r': true, 't': true,
	'b': true, 'f': true, 'u': true, '/': true,
}

// ValidateEscapes walks every quoted string literal in b and rejects any
// escape sequence that is not in allowedEscapes. It does not allocate; it is
// meant to run once per inbound frame before the frame is unmarshaled.
func ValidateEscapes(b []byte) error {
	inStr := false
	for i := 0; i < len(b); i++ {
		c := b[i]
		if !inStr {
			if c == '"' {
				inStr = true
			}
			continue
		}
		switch c {
		case '"':
			inStr = false
		case '\\':
			if i+1 >= len(b) {
				return UnsupportedJSONEscape
			}
			next := b[i+1]
			if !allowedEscapes[next] {
				return UnsupportedJSONEscape
			}
			if next == 'u' {
				if i+5 >= len(b) {
					return UnsupportedJSONEscape
				}
				i += 4
			}
			i++
		}
	}
	if inStr {
		return UnsupportedJSONEscape
	}
	return nil
}

// ValidateTopLevel requires the frame to be a JSON array at the top level
// and rejects bare true/false/null tokens appearing outside of string
// literals anywhere in the frame — the relay wire grammar never carries a
// bare literal at the envelope level.
func ValidateTopLevel(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return UnsupportedJSONLiterals
	}
	inStr := false
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if inStr {
			if c == '\\' {
				i++
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch {
		case c == '"':
			inStr = true
		case c == 't' && bytes.HasPrefix(trimmed[i:], []byte("true")):
			return UnsupportedJSONLiterals
		case c == 'f' && bytes.HasPrefix(trimmed[i:], []byte("false")):
			return UnsupportedJSONLiterals
		case c == 'n' && bytes.HasPrefix(trimmed[i:], []byte("null")):
			return UnsupportedJSONLiterals
		}
	}
	return nil
}

// ValidUTF8 reports whether b is well-formed UTF-8, a precondition the
// content and tag-value fields of an event must satisfy before hashing.
func ValidUTF8(b []byte) bool { return utf8.Valid(b) }
