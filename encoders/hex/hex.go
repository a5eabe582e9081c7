// Package hex is a thin naming wrapper over encoding/hex matching the
// teacher's Enc/Dec call-site vocabulary (hex.Enc, hex.EncAppend,
// hex.DecAppend).
package hex

import "encoding/hex"

// Enc returns the lowercase hex encoding of b.
func Enc(b []byte) string { return hex.EncodeToString(b) }

// EncAppend appends the lowercase hex encoding of src to dst.
func EncAppend(dst, src []byte) []byte {
	out := make([]byte, hex.EncodedLen(len(src)))
	hex.Encode(out, src)
	return append(dst, out...)
}

// Dec decodes a hex string into bytes.
func Dec(s string) ([]byte, error) { return hex.DecodeString(s) }

// DecAppend decodes src (ASCII hex) and appends the result to dst.
func DecAppend(dst, src []byte) (out []byte, err error) {
	b := make([]byte, hex.DecodedLen(len(src)))
	if _, err = hex.Decode(b, src); err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}

// Valid64 reports whether s is exactly 64 lowercase hex characters (the
// shape of an event id or pubkey).
func Valid64(s []byte) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
