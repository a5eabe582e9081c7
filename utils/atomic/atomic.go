// Package atomic adds a couple of convenience wrappers over
// go.uber.org/atomic for the byte-slice and string-valued fields that
// protocol/ws.Listener keeps per connection (challenge, authed pubkey,
// remote address), plus the JSON (de)serialization in bytes_ext.go.
package atomic

import "go.uber.org/atomic"

// Bytes is an atomically-swappable []byte.
type Bytes struct {
	v atomic.Value
}

func (b *Bytes) Load() []byte {
	v := b.v.Load()
	if v == nil {
		return nil
	}
	return v.([]byte)
}

func (b *Bytes) Store(p []byte) { b.v.Store(p) }

// String is an atomically-swappable string.
type String = atomic.String

// Bool is an atomically-swappable bool.
type Bool = atomic.Bool
