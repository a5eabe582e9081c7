// Package tags is the ordered list of tag.T an event or filter carries, plus
// the intersection test the store's filter matcher runs for every `#x`
// filter field.
package tags

import "nostrium.dev/encoders/tag"

// T is an ordered tag list.
type T struct {
	T []*tag.T
}

// New builds a tag list.
func New(t ...*tag.T) *T { return &T{T: t} }

// Len returns the number of tags.
func (t *T) Len() int {
	if t == nil {
		return 0
	}
	return len(t.T)
}

// Append adds a tag to the list.
func (t *T) Append(tg *tag.T) { t.T = append(t.T, tg) }

// GetFirst returns the first tag whose name matches name, or nil.
func (t *T) GetFirst(name string) *tag.T {
	if t == nil {
		return nil
	}
	for _, tg := range t.T {
		if string(tg.Name()) == name {
			return tg
		}
	}
	return nil
}

// GetAll returns every tag whose name matches name.
func (t *T) GetAll(name string) []*tag.T {
	if t == nil {
		return nil
	}
	var out []*tag.T
	for _, tg := range t.T {
		if string(tg.Name()) == name {
			out = append(out, tg)
		}
	}
	return out
}

// Values returns the primary value (field 1) of every tag named name.
func (t *T) Values(name string) []string {
	all := t.GetAll(name)
	out := make([]string, 0, len(all))
	for _, tg := range all {
		if v := tg.Value(); v != nil {
			out = append(out, string(v))
		}
	}
	return out
}

// Clone deep-copies the tag list.
func (t *T) Clone() *T {
	if t == nil {
		return nil
	}
	out := make([]*tag.T, len(t.T))
	for i, tg := range t.T {
		out[i] = tg.Clone()
	}
	return &T{T: out}
}

// Intersects reports whether every tag constraint in f is met by some tag
// in t with the same name whose primary value is one of the constraint's
// values — the core of NIP-01 `#x` filter matching. An empty or nil f
// intersects everything (no constraint).
func (t *T) Intersects(f *T) bool {
	if f.Len() == 0 {
		return true
	}
	for _, want := range f.T {
		name := string(want.Name())
		wantVals := make(map[string]bool, want.Len()-1)
		for i := 1; i < want.Len(); i++ {
			wantVals[string(want.Get(i))] = true
		}
		matched := false
		for _, have := range t.T {
			if string(have.Name()) != name {
				continue
			}
			if have.Len() >= 2 && wantVals[string(have.Value())] {
				matched = true
			}
			if matched {
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Strings renders the whole list as [][]string, the JSON wire shape.
func (t *T) Strings() [][]string {
	out := make([][]string, t.Len())
	for i, tg := range t.T {
		out[i] = tg.Strings()
	}
	return out
}

// FromStrings builds a tag list from [][]string.
func FromStrings(s [][]string) *T {
	out := make([]*tag.T, len(s))
	for i, v := range s {
		out[i] = tag.FromStrings(v)
	}
	return &T{T: out}
}
