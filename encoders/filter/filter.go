// Package filter is a single NIP-01 REQ filter: the AND-across-fields,
// OR-within-field predicate the store's query engine and the subscription
// fan-out path both evaluate against candidate events.
package filter

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"strings"

	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/hex"
	"nostrium.dev/encoders/kind"
	"nostrium.dev/encoders/tag"
	"nostrium.dev/encoders/tags"
	"nostrium.dev/encoders/timestamp"
)

// F is a single filter.
type F struct {
	Ids     []string
	Kinds   []kind.T
	Authors []string
	Tags    *tags.T // named-tag constraints, e.g. #e, #p, #d, #a
	Since   *timestamp.T
	Until   *timestamp.T
	Search  string
	Limit   *uint
}

// New returns an empty filter with an initialized tag constraint list.
func New() *F { return &F{Tags: tags.New()} }

// Clone deep-copies the filter.
func (f *F) Clone() *F {
	c := &F{
		Ids:     append([]string(nil), f.Ids...),
		Kinds:   append([]kind.T(nil), f.Kinds...),
		Authors: append([]string(nil), f.Authors...),
		Tags:    f.Tags.Clone(),
		Search:  f.Search,
	}
	if f.Since != nil {
		s := *f.Since
		c.Since = &s
	}
	if f.Until != nil {
		u := *f.Until
		c.Until = &u
	}
	if f.Limit != nil {
		l := *f.Limit
		c.Limit = &l
	}
	return c
}

// IdsOnly reports whether ids is the filter's only predicate — the store
// skips replaceable-kind collapse for such filters.
func (f *F) IdsOnly() bool {
	return len(f.Ids) > 0 && len(f.Kinds) == 0 && len(f.Authors) == 0 &&
		f.Tags.Len() == 0 && f.Since == nil && f.Until == nil && f.Search == ""
}

func prefixMatches(prefixes []string, full []byte) bool {
	if len(prefixes) == 0 {
		return true
	}
	fullHex := hex.Enc(full)
	for _, p := range prefixes {
		if strings.HasPrefix(fullHex, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func kindMatches(kinds []kind.T, k kind.T) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

// searchMatches implements NIP-50: whitespace-split tokens, drop key:value
// extension tokens, lowercase, require every remaining token to be a
// substring of the lowercased content. Empty or all-extension search
// accepts everything.
func searchMatches(search string, content []byte) bool {
	if search == "" {
		return true
	}
	lc := strings.ToLower(string(content))
	for _, tok := range strings.Fields(search) {
		if strings.Contains(tok, ":") {
			continue
		}
		if !strings.Contains(lc, strings.ToLower(tok)) {
			return false
		}
	}
	return true
}

// Matches reports whether ev satisfies f: AND across fields, OR within a
// field.
func (f *F) Matches(ev *event.E) bool {
	if !kindMatches(f.Kinds, ev.Kind) {
		return false
	}
	if !prefixMatches(f.Ids, ev.Id) {
		return false
	}
	if !prefixMatches(f.Authors, ev.Pubkey) {
		return false
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt > *f.Until {
		return false
	}
	if !ev.Tags.Intersects(f.Tags) {
		return false
	}
	if !searchMatches(f.Search, ev.Content) {
		return false
	}
	return true
}

// Fingerprint is a truncated SHA-256 over the filter's canonical JSON, used
// to key cached query plans / dedupe identical subscriptions.
func (f *F) Fingerprint() []byte {
	b, _ := json.Marshal(f)
	sum := sha256.Sum256(b)
	return sum[:16]
}

// wireFilter mirrors the NIP-01 REQ filter object, including the dynamic
// "#x" named-tag fields which encoding/json can't express as struct tags.
type wireFilter struct {
	Ids     []string `json:"ids,omitempty"`
	Kinds   []int64  `json:"kinds,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Since   *int64   `json:"since,omitempty"`
	Until   *int64   `json:"until,omitempty"`
	Limit   *uint    `json:"limit,omitempty"`
	Search  string   `json:"search,omitempty"`
}

// MarshalJSON renders the filter, folding named-tag constraints back into
// "#e"/"#p"/... keys alongside the fixed fields.
func (f *F) MarshalJSON() ([]byte, error) {
	w := wireFilter{Search: f.Search}
	w.Ids = f.Ids
	for _, k := range f.Kinds {
		w.Kinds = append(w.Kinds, int64(k))
	}
	w.Authors = f.Authors
	if f.Since != nil {
		v := f.Since.I64()
		w.Since = &v
	}
	if f.Until != nil {
		v := f.Until.I64()
		w.Until = &v
	}
	w.Limit = f.Limit

	base, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for _, tg := range f.Tags.T {
		name := "#" + string(tg.Name())
		vals := tg.Strings()[1:]
		b, err := json.Marshal(vals)
		if err != nil {
			return nil, err
		}
		m[name] = b
	}
	return json.Marshal(m)
}

// UnmarshalJSON parses a NIP-01 REQ filter object, collecting any "#x" key
// into a named-tag constraint.
func (f *F) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	f.Tags = tags.New()
	for key, v := range raw {
		switch key {
		case "ids":
			if err := json.Unmarshal(v, &f.Ids); err != nil {
				return err
			}
		case "authors":
			if err := json.Unmarshal(v, &f.Authors); err != nil {
				return err
			}
		case "kinds":
			var ks []int64
			if err := json.Unmarshal(v, &ks); err != nil {
				return err
			}
			for _, k := range ks {
				f.Kinds = append(f.Kinds, kind.T(k))
			}
		case "since":
			var t int64
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			ts := timestamp.FromUnix(t)
			f.Since = &ts
		case "until":
			var t int64
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			ts := timestamp.FromUnix(t)
			f.Until = &ts
		case "limit":
			var l uint
			if err := json.Unmarshal(v, &l); err != nil {
				return err
			}
			f.Limit = &l
		case "search":
			if err := json.Unmarshal(v, &f.Search); err != nil {
				return err
			}
		default:
			if len(key) >= 2 && key[0] == '#' {
				var vals []string
				if err := json.Unmarshal(v, &vals); err != nil {
					return err
				}
				fields := [][]byte{[]byte(key[1:])}
				for _, val := range vals {
					fields = append(fields, []byte(val))
				}
				f.Tags.Append(tag.NewFromBytes(fields...))
			}
		}
	}
	return nil
}

// Equal reports whether f and o are structurally identical, used to dedupe
// subscription filter lists.
func (f *F) Equal(o *F) bool {
	a, _ := json.Marshal(f)
	b, _ := json.Marshal(o)
	return bytes.Equal(a, b)
}
