// Package filters is the filter list a REQ or COUNT message carries: an
// event matches the list if it matches at least one filter in it.
package filters

import (
	"encoding/json"

	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/filter"
)

// T is an ordered list of filters.
type T struct {
	F []*filter.F
}

// New builds a filter list.
func New(f ...*filter.F) *T { return &T{F: f} }

// Matches reports whether ev satisfies at least one filter in t.
func (t *T) Matches(ev *event.E) bool {
	for _, f := range t.F {
		if f.Matches(ev) {
			return true
		}
	}
	return false
}

// Limit returns the minimum of every filter's Limit, or nil if none of the
// filters set one — the store applies this as the query's global cap.
func (t *T) Limit() *uint {
	var min *uint
	for _, f := range t.F {
		if f.Limit == nil {
			continue
		}
		if min == nil || *f.Limit < *min {
			v := *f.Limit
			min = &v
		}
	}
	return min
}

// MarshalJSON renders the list as a bare JSON array of filter objects.
func (t *T) MarshalJSON() ([]byte, error) { return json.Marshal(t.F) }

// UnmarshalJSON parses a bare JSON array of filter objects.
func (t *T) UnmarshalJSON(b []byte) error { return json.Unmarshal(b, &t.F) }
