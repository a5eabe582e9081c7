// Package timestamp is the Unix-seconds timestamp type events, filters and
// subscriptions carry (NIP-01 created_at, since/until).
package timestamp

import (
	"strconv"
	"time"
)

// T is a Unix-second timestamp.
type T int64

// Now returns the current time as a T.
func Now() T { return T(time.Now().Unix()) }

// FromUnix wraps a raw Unix-seconds value.
func FromUnix(u int64) T { return T(u) }

// I64 returns the timestamp as an int64.
func (t T) I64() int64 { return int64(t) }

// Time converts t to a time.Time (UTC).
func (t T) Time() time.Time { return time.Unix(int64(t), 0).UTC() }

// String renders the decimal Unix-seconds form, as it appears on the wire.
func (t T) String() string { return strconv.FormatInt(int64(t), 10) }

// Before reports whether t is strictly earlier than u.
func (t T) Before(u T) bool { return t < u }

// After reports whether t is strictly later than u.
func (t T) After(u T) bool { return t > u }

// MarshalJSON renders the timestamp as a bare JSON number.
func (t T) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(t), 10)), nil
}

// UnmarshalJSON parses a bare JSON number into the timestamp.
func (t *T) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*t = T(v)
	return nil
}
