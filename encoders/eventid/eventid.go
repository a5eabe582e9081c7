// Package eventid is the 32-byte raw form of an event id, plus the hex
// conversions the wire codec and store index use.
package eventid

import "nostrium.dev/encoders/hex"

// T is a 32-byte event id.
type T [32]byte

// FromHex decodes a 64-character lowercase hex string into a T.
func FromHex(s string) (T, error) {
	var id T
	b, err := hex.Dec(s)
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// FromBytes copies raw into a T. It does not validate length; callers that
// parsed from hex already know it is 32 bytes.
func FromBytes(raw []byte) T {
	var id T
	copy(id[:], raw)
	return id
}

// Hex renders the lowercase hex form.
func (t T) Hex() string { return hex.Enc(t[:]) }

// Bytes returns the raw 32 bytes as a slice.
func (t T) Bytes() []byte { return t[:] }
