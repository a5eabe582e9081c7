package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/hex"
	"nostrium.dev/encoders/kind"
	"nostrium.dev/encoders/tag"
	"nostrium.dev/encoders/timestamp"
)

func note(id string, k kind.T, createdAt int64, content string, tgs ...*tag.T) *event.E {
	e := event.New()
	idb, _ := hex.Dec(pad64(id))
	e.Id = idb
	e.Pubkey = make([]byte, 32)
	e.CreatedAt = timestamp.FromUnix(createdAt)
	e.Kind = k
	e.Content = []byte(content)
	for _, tg := range tgs {
		e.Tags.Append(tg)
	}
	return e
}

func pad64(s string) string {
	for len(s) < 64 {
		s += "0"
	}
	return s
}

func TestMatchesKindFilter(t *testing.T) {
	f := New()
	f.Kinds = []kind.T{kind.Text}

	assert.True(t, f.Matches(note("aa", kind.Text, 1, "hi")))
	assert.False(t, f.Matches(note("aa", kind.Profile, 1, "hi")))
}

func TestMatchesIdPrefix(t *testing.T) {
	f := New()
	f.Ids = []string{"abcd"}

	assert.True(t, f.Matches(note("abcdef", 1, 1, "x")))
	assert.False(t, f.Matches(note("ffffff", 1, 1, "x")))
}

func TestMatchesSinceUntilRange(t *testing.T) {
	f := New()
	since := timestamp.FromUnix(100)
	until := timestamp.FromUnix(200)
	f.Since = &since
	f.Until = &until

	assert.True(t, f.Matches(note("aa", 1, 150, "x")))
	assert.False(t, f.Matches(note("aa", 1, 50, "x")))
	assert.False(t, f.Matches(note("aa", 1, 250, "x")))
}

func TestMatchesTagIntersection(t *testing.T) {
	f := New()
	f.Tags.Append(tag.New("e", "deadbeef"))

	withTag := note("aa", 1, 1, "x", tag.New("e", "deadbeef"))
	withoutTag := note("bb", 1, 1, "x", tag.New("p", "deadbeef"))

	assert.True(t, f.Matches(withTag))
	assert.False(t, f.Matches(withoutTag))
}

func TestMatchesSearchIgnoresExtensionTokens(t *testing.T) {
	f := New()
	f.Search = "hello domain:example.com"

	assert.True(t, f.Matches(note("aa", 1, 1, "Hello world")))
	assert.False(t, f.Matches(note("bb", 1, 1, "goodbye world")))
}

func TestIdsOnlyRequiresNoOtherPredicate(t *testing.T) {
	f := New()
	f.Ids = []string{"aa"}
	assert.True(t, f.IdsOnly())

	f.Search = "x"
	assert.False(t, f.IdsOnly())
}

func TestMarshalUnmarshalJSONRoundTripWithNamedTags(t *testing.T) {
	f := New()
	f.Kinds = []kind.T{0, 1}
	f.Authors = []string{"deadbeef"}
	limit := uint(10)
	f.Limit = &limit
	f.Tags.Append(tag.New("e", "abc", "def"))

	b, err := f.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"#e"`)

	got := New()
	require.NoError(t, got.UnmarshalJSON(b))

	assert.Equal(t, f.Kinds, got.Kinds)
	assert.Equal(t, f.Authors, got.Authors)
	require.NotNil(t, got.Limit)
	assert.Equal(t, *f.Limit, *got.Limit)
	assert.Equal(t, []string{"e", "abc", "def"}, got.Tags.GetFirst("e").Strings())
}

func TestEqualComparesStructurally(t *testing.T) {
	a := New()
	a.Kinds = []kind.T{1}
	b := New()
	b.Kinds = []kind.T{1}
	c := New()
	c.Kinds = []kind.T{2}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestCloneIsIndependent(t *testing.T) {
	f := New()
	f.Ids = []string{"aa"}
	limit := uint(5)
	f.Limit = &limit

	c := f.Clone()
	c.Ids[0] = "bb"
	*c.Limit = 9

	assert.Equal(t, "aa", f.Ids[0])
	assert.Equal(t, uint(5), *f.Limit)
}
