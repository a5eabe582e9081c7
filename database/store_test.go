package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostrium.dev/crypto/p256k/btcec"
	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/eventid"
	"nostrium.dev/encoders/filter"
	"nostrium.dev/encoders/filters"
	"nostrium.dev/encoders/kind"
	"nostrium.dev/encoders/tag"
	"nostrium.dev/encoders/timestamp"
	"nostrium.dev/interfaces/store"
	"nostrium.dev/utils/context"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.Init(t.TempDir()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeNote(t *testing.T, k kind.T, createdAt int64, content string, tgs ...*tag.T) *event.E {
	t.Helper()
	signer := btcec.NewSigner()
	require.NoError(t, signer.Generate())

	e := event.New()
	e.CreatedAt = timestamp.FromUnix(createdAt)
	e.Kind = k
	e.Content = []byte(content)
	for _, tg := range tgs {
		e.Tags.Append(tg)
	}
	require.NoError(t, e.Sign(signer))
	return e
}

func byKindFilter(k kind.T) *filters.T {
	f := filter.New()
	f.Kinds = []kind.T{k}
	return filters.New(f)
}

func TestSaveEventThenQueryFindsIt(t *testing.T) {
	s := newTestStore(t)
	ev := makeNote(t, kind.Text, 1000, "hello")

	res, err := s.SaveEvent(context.Bg(), ev)
	require.NoError(t, err)
	assert.Equal(t, store.Inserted, res)

	got, err := s.QueryEvents(context.Bg(), byKindFilter(kind.Text), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev.Id, got[0].Id)
}

func TestSaveEventRejectsDuplicateId(t *testing.T) {
	s := newTestStore(t)
	ev := makeNote(t, kind.Text, 1000, "hello")

	_, err := s.SaveEvent(context.Bg(), ev)
	require.NoError(t, err)

	res, err := s.SaveEvent(context.Bg(), ev)
	require.NoError(t, err)
	assert.Equal(t, store.Duplicate, res)
}

func TestQueryEventsAppliesLimit(t *testing.T) {
	s := newTestStore(t)
	for i := int64(0); i < 5; i++ {
		ev := makeNote(t, kind.Text, 1000+i, "note")
		_, err := s.SaveEvent(context.Bg(), ev)
		require.NoError(t, err)
	}

	f := byKindFilter(kind.Text)
	limit := uint(2)
	f.F[0].Limit = &limit

	got, err := s.QueryEvents(context.Bg(), f, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestQueryEventsOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	older := makeNote(t, kind.Text, 100, "older")
	newer := makeNote(t, kind.Text, 200, "newer")
	_, err := s.SaveEvent(context.Bg(), older)
	require.NoError(t, err)
	_, err = s.SaveEvent(context.Bg(), newer)
	require.NoError(t, err)

	got, err := s.QueryEvents(context.Bg(), byKindFilter(kind.Text), nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.Id, got[0].Id)
	assert.Equal(t, older.Id, got[1].Id)
}

func TestQueryEventsExcludesEphemeral(t *testing.T) {
	s := newTestStore(t)
	ephemeral := makeNote(t, 20001, 1000, "ephemeral")
	_, err := s.SaveEvent(context.Bg(), ephemeral)
	require.NoError(t, err)

	got, err := s.QueryEvents(context.Bg(), byKindFilter(20001), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryEventsMasksExpiredEvents(t *testing.T) {
	s := newTestStore(t)
	ev := makeNote(t, kind.Text, 1000, "expiring", tag.New("expiration", "1100"))
	_, err := s.SaveEvent(context.Bg(), ev)
	require.NoError(t, err)

	got, err := s.QueryEvents(context.Bg(), byKindFilter(kind.Text), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryEventsCollapsesReplaceableByPubkey(t *testing.T) {
	s := newTestStore(t)
	signer := btcec.NewSigner()
	require.NoError(t, signer.Generate())

	older := event.New()
	older.CreatedAt = timestamp.FromUnix(100)
	older.Kind = kind.Profile
	older.Content = []byte(`{"name":"old"}`)
	require.NoError(t, older.Sign(signer))

	newer := event.New()
	newer.CreatedAt = timestamp.FromUnix(200)
	newer.Kind = kind.Profile
	newer.Content = []byte(`{"name":"new"}`)
	require.NoError(t, newer.Sign(signer))

	_, err := s.SaveEvent(context.Bg(), older)
	require.NoError(t, err)
	_, err = s.SaveEvent(context.Bg(), newer)
	require.NoError(t, err)

	got, err := s.QueryEvents(context.Bg(), byKindFilter(kind.Profile), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, newer.Id, got[0].Id)
}

func TestQueryEventsMasksDeletedEvent(t *testing.T) {
	s := newTestStore(t)
	signer := btcec.NewSigner()
	require.NoError(t, signer.Generate())

	target := event.New()
	target.CreatedAt = timestamp.FromUnix(100)
	target.Kind = kind.Text
	target.Content = []byte("delete me")
	require.NoError(t, target.Sign(signer))
	_, err := s.SaveEvent(context.Bg(), target)
	require.NoError(t, err)

	targetIdHex := eventid.FromBytes(target.Id).Hex()
	del := event.New()
	del.CreatedAt = timestamp.FromUnix(200)
	del.Kind = kind.Deletion
	del.Tags.Append(tag.New("e", targetIdHex))
	require.NoError(t, del.Sign(signer))
	_, err = s.SaveEvent(context.Bg(), del)
	require.NoError(t, err)

	got, err := s.QueryEvents(context.Bg(), byKindFilter(kind.Text), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryEventsHidesGiftWrapWithoutRecipientMatch(t *testing.T) {
	s := newTestStore(t)
	signer := btcec.NewSigner()
	require.NoError(t, signer.Generate())

	wrap := event.New()
	wrap.CreatedAt = timestamp.Now()
	wrap.Kind = kind.GiftWrap
	wrap.Tags.Append(tag.New("p", "recipient-pubkey"))
	require.NoError(t, wrap.Sign(signer))
	_, err := s.SaveEvent(context.Bg(), wrap)
	require.NoError(t, err)

	got, err := s.QueryEvents(context.Bg(), byKindFilter(kind.GiftWrap), nil)
	require.NoError(t, err)
	assert.Empty(t, got, "gift wraps are hidden without a matching QueryOpts recipient")

	withRecipient, err := s.QueryEvents(context.Bg(), byKindFilter(kind.GiftWrap), &store.QueryOpts{
		GiftWrapPresent:    true,
		GiftWrapRecipients: []string{"recipient-pubkey"},
	})
	require.NoError(t, err)
	require.Len(t, withRecipient, 1)
}

func TestCountEventsMatchesQueryLength(t *testing.T) {
	s := newTestStore(t)
	for i := int64(0); i < 3; i++ {
		ev := makeNote(t, kind.Text, 1000+i, "note")
		_, err := s.SaveEvent(context.Bg(), ev)
		require.NoError(t, err)
	}

	n, err := s.CountEvents(context.Bg(), byKindFilter(kind.Text), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestEventMatchesFiltersReflectsStoredEvent(t *testing.T) {
	s := newTestStore(t)
	ev := makeNote(t, kind.Text, 1000, "hello")
	_, err := s.SaveEvent(context.Bg(), ev)
	require.NoError(t, err)

	id := eventid.FromBytes(ev.Id)
	ok, err := s.EventMatchesFilters(id, byKindFilter(kind.Text))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.EventMatchesFilters(id, byKindFilter(kind.Profile))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteEventRemovesRecord(t *testing.T) {
	s := newTestStore(t)
	ev := makeNote(t, kind.Text, 1000, "hello")
	_, err := s.SaveEvent(context.Bg(), ev)
	require.NoError(t, err)

	id := eventid.FromBytes(ev.Id)
	require.NoError(t, s.DeleteEvent(context.Bg(), id))

	got, err := s.QueryEvents(context.Bg(), byKindFilter(kind.Text), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWipeClearsAllEvents(t *testing.T) {
	s := newTestStore(t)
	ev := makeNote(t, kind.Text, 1000, "hello")
	_, err := s.SaveEvent(context.Bg(), ev)
	require.NoError(t, err)

	require.NoError(t, s.Wipe())

	got, err := s.QueryEvents(context.Bg(), byKindFilter(kind.Text), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRebuildIndicesRecoversAfterReopen(t *testing.T) {
	dir := t.TempDir()
	s1 := New()
	require.NoError(t, s1.Init(dir))

	ev := makeNote(t, kind.Text, 1000, "persisted")
	_, err := s1.SaveEvent(context.Bg(), ev)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2 := New()
	require.NoError(t, s2.Init(dir))
	t.Cleanup(func() { _ = s2.Close() })

	got, err := s2.QueryEvents(context.Bg(), byKindFilter(kind.Text), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev.Id, got[0].Id)
}
