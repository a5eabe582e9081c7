// Package database is the event store: durable blob persistence via
// badger, plus the in-memory candidate indices and the query-time
// collapse/masking/visibility rules of the filter and query engine.
//
// Physical key layout is intentionally simple — a single badger key space
// keyed "ev:<hex id>" holding the event's JSON encoding — because the
// specification treats the persistence engine itself as an external
// collaborator; what matters is that query/count/match produce the right
// answers, not the on-disk index scheme.
package database

import (
	"strconv"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/eventid"
	"nostrium.dev/encoders/filters"
	"nostrium.dev/encoders/kind"
	"nostrium.dev/encoders/timestamp"
	"nostrium.dev/interfaces/store"
	"nostrium.dev/utils/chk"
	"nostrium.dev/utils/context"
	"nostrium.dev/utils/errorf"
	"nostrium.dev/utils/log"
)

const keyPrefix = "ev:"

// Store is a badger-backed store.I implementation.
type Store struct {
	mx   sync.RWMutex
	db   *badger.DB
	path string

	// byId is the full in-memory event cache, rebuilt from badger at Init.
	byId map[string]*event.E
	// byPubkeyDeletions indexes kind-5 events by signer pubkey, the
	// candidate set NIP-09 masking walks.
	byPubkeyDeletions map[string][]*event.E
}

// New constructs an unopened Store.
func New() *Store {
	return &Store{
		byId:              map[string]*event.E{},
		byPubkeyDeletions: map[string][]*event.E{},
	}
}

// Init opens the badger database at path and rebuilds the in-memory
// indices from its contents.
func (s *Store) Init(path string) (err error) {
	s.path = path
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	if s.db, err = badger.Open(opts); chk.E(err) {
		return
	}
	return s.rebuildIndices()
}

func (s *Store) rebuildIndices() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.byId = map[string]*event.E{}
	s.byPubkeyDeletions = map[string][]*event.E{}
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var raw []byte
			if err := item.Value(func(v []byte) error {
				raw = append(raw, v...)
				return nil
			}); err != nil {
				return err
			}
			ev := event.New()
			if err := ev.UnmarshalJSON(raw); err != nil {
				log.E.F("skipping corrupt event record %s: %v", item.Key(), err)
				continue
			}
			s.indexLocked(ev)
		}
		return nil
	})
}

func (s *Store) indexLocked(ev *event.E) {
	s.byId[eventid.FromBytes(ev.Id).Hex()] = ev
	if ev.Kind == kind.Deletion {
		pk := eventid.FromBytes(ev.Pubkey).Hex()
		s.byPubkeyDeletions[pk] = append(s.byPubkeyDeletions[pk], ev)
	}
}

// Path returns the backing badger directory.
func (s *Store) Path() string { return s.path }

// Close flushes and closes the backing badger database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Sync runs a badger value-log sync.
func (s *Store) Sync() error {
	if s.db == nil {
		return nil
	}
	return s.db.Sync()
}

// SetLogLevel is a no-op placeholder; the badger logger is disabled and
// this store logs through utils/log at the levels it already uses.
func (s *Store) SetLogLevel(string) {}

// Wipe deletes every record. Test-only per the specification.
func (s *Store) Wipe() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.byId = map[string]*event.E{}
	s.byPubkeyDeletions = map[string][]*event.E{}
	return s.db.DropAll()
}

// SaveEvent persists ev if its id is not already present.
func (s *Store) SaveEvent(c context.T, ev *event.E) (store.InsertResult, error) {
	id := eventid.FromBytes(ev.Id).Hex()

	s.mx.RLock()
	_, exists := s.byId[id]
	s.mx.RUnlock()
	if exists {
		return store.Duplicate, nil
	}

	raw, err := ev.MarshalJSON()
	if err != nil {
		return 0, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+id), raw)
	})
	if chk.E(err) {
		return 0, err
	}

	s.mx.Lock()
	s.indexLocked(ev)
	s.mx.Unlock()
	return store.Inserted, nil
}

// DeleteEvent removes an event's blob and in-memory entry outright. NIP-09
// masking is a read-time filter and does not call this; this exists for
// administrative wipe paths.
func (s *Store) DeleteEvent(c context.T, id eventid.T) error {
	hx := id.Hex()
	s.mx.Lock()
	delete(s.byId, hx)
	s.mx.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + hx))
	})
}

// candidates returns every stored event matching at least one filter in f,
// before ephemeral/expiration/deletion/gift-wrap/collapse post-processing.
func (s *Store) candidates(f *filters.T) []*event.E {
	s.mx.RLock()
	defer s.mx.RUnlock()
	out := make([]*event.E, 0, 64)
	for _, ev := range s.byId {
		if ev.Kind.IsEphemeral() {
			continue
		}
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func isExpired(ev *event.E, now int64) bool {
	t := ev.Tags.GetFirst("expiration")
	if t == nil {
		return false
	}
	v := t.Value()
	if v == nil {
		return false
	}
	var exp int64
	for _, c := range v {
		if c < '0' || c > '9' {
			return false
		}
		exp = exp*10 + int64(c-'0')
	}
	return exp <= now
}

// deletionHides reports whether ev is masked by one of author's kind-5
// deletion events per the §4.4 rule.
func deletionHides(ev *event.E, deletions []*event.E) bool {
	evID := eventid.FromBytes(ev.Id).Hex()
	evPK := eventid.FromBytes(ev.Pubkey).Hex()
	evD := ev.DTag()
	for _, del := range deletions {
		var kindFilter map[int64]bool
		if kt := del.Tags.GetFirst("k"); kt != nil {
			kindFilter = map[int64]bool{}
			for _, v := range del.Tags.Values("k") {
				var n int64
				for _, c := range v {
					if c < '0' || c > '9' {
						continue
					}
					n = n*10 + int64(c-'0')
				}
				kindFilter[n] = true
			}
		}
		for _, eTarget := range del.Tags.Values("e") {
			if eTarget == evID {
				if kindFilter == nil || kindFilter[int64(ev.Kind)] {
					return true
				}
			}
		}
		for _, aTarget := range del.Tags.Values("a") {
			parts := strings.SplitN(aTarget, ":", 3)
			if len(parts) != 3 {
				continue
			}
			if parts[1] != evPK {
				continue
			}
			var aKind int64
			for _, c := range parts[0] {
				if c < '0' || c > '9' {
					continue
				}
				aKind = aKind*10 + int64(c-'0')
			}
			if aKind == int64(ev.Kind) && parts[2] == evD && del.CreatedAt >= ev.CreatedAt {
				return true
			}
		}
	}
	return false
}

func giftWrapVisible(ev *event.E, opts *store.QueryOpts) bool {
	if ev.Kind != kind.DM && ev.Kind != kind.GiftWrap {
		return true
	}
	if opts == nil || !opts.GiftWrapPresent {
		return false
	}
	if len(opts.GiftWrapRecipients) == 0 {
		return false
	}
	recipients := ev.Tags.Values("p")
	want := map[string]bool{}
	for _, r := range opts.GiftWrapRecipients {
		want[r] = true
	}
	for _, r := range recipients {
		if want[r] {
			return true
		}
	}
	return false
}

func collapseKey(ev *event.E) (key string, collapses bool) {
	k := ev.Kind
	switch {
	case k.IsReplaceable():
		return "r:" + strconv.FormatInt(int64(k), 10) + ":" + eventid.FromBytes(ev.Pubkey).Hex(), true
	case k.IsParameterizedReplaceable():
		return "p:" + strconv.FormatInt(int64(k), 10) + ":" + eventid.FromBytes(ev.Pubkey).Hex() + ":" + ev.DTag(), true
	case k == kind.ChannelMetadata:
		root := ev.Tags.GetFirst("e")
		for _, tg := range ev.Tags.GetAll("e") {
			if tg.Len() >= 4 && string(tg.Get(3)) == "root" {
				root = tg
				break
			}
		}
		if root == nil {
			return "", false
		}
		return "c41:" + string(root.Value()), true
	default:
		return "", false
	}
}

func newer(a, b *event.E) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return string(a.Id) < string(b.Id)
}

// process applies ephemeral exclusion (already done in candidates),
// expiration, deletion masking, gift-wrap visibility and replaceable
// collapse to a raw candidate list, then sorts newest-first.
func (s *Store) process(f *filters.T, candidates []*event.E, opts *store.QueryOpts, now int64) event.Events {
	s.mx.RLock()
	deletionsSnapshot := s.byPubkeyDeletions
	s.mx.RUnlock()

	skipCollapse := true
	hasChannelMeta := false
	for _, ev := range candidates {
		if ev.Kind == kind.ChannelMetadata {
			hasChannelMeta = true
		}
	}
	for _, flt := range f.F {
		if !flt.IdsOnly() {
			skipCollapse = false
		}
	}
	skipCollapse = skipCollapse && !hasChannelMeta

	liveDeletions := map[string][]*event.E{}

	filtered := make([]*event.E, 0, len(candidates))
	for _, ev := range candidates {
		if isExpired(ev, now) {
			continue
		}
		if !giftWrapVisible(ev, opts) {
			continue
		}
		pk := eventid.FromBytes(ev.Pubkey).Hex()
		if dels, ok := deletionsSnapshot[pk]; ok {
			live, cached := liveDeletions[pk]
			if !cached {
				live = make([]*event.E, 0, len(dels))
				for _, del := range dels {
					if !isExpired(del, now) {
						live = append(live, del)
					}
				}
				liveDeletions[pk] = live
			}
			if deletionHides(ev, live) {
				continue
			}
		}
		filtered = append(filtered, ev)
	}

	if skipCollapse {
		event.SortDescending(filtered)
		return filtered
	}

	groups := map[string]*event.E{}
	var ungrouped []*event.E
	for _, ev := range filtered {
		key, collapses := collapseKey(ev)
		if !collapses {
			ungrouped = append(ungrouped, ev)
			continue
		}
		if cur, ok := groups[key]; !ok || newer(ev, cur) {
			groups[key] = ev
		}
	}
	out := make([]*event.E, 0, len(groups)+len(ungrouped))
	out = append(out, ungrouped...)
	for _, ev := range groups {
		out = append(out, ev)
	}
	event.SortDescending(out)
	return out
}

// QueryEvents implements query_events.
func (s *Store) QueryEvents(c context.T, f *filters.T, opts *store.QueryOpts) (event.Events, error) {
	if f == nil || len(f.F) == 0 {
		return nil, errorf.E("query_events requires at least one filter")
	}
	now := timestamp.Now().I64()
	candidates := s.candidates(f)
	result := s.process(f, candidates, opts, now)

	if lim := f.Limit(); lim != nil && int(*lim) < len(result) {
		result = result[:*lim]
	}
	return result, nil
}

// CountEvents implements count_events: the same filtering, masking and
// collapse as QueryEvents, but the filters' limit does not cap the count.
func (s *Store) CountEvents(c context.T, f *filters.T, opts *store.QueryOpts) (uint64, error) {
	if f == nil || len(f.F) == 0 {
		return 0, errorf.E("count_events requires at least one filter")
	}
	evs := s.process(f, s.candidates(f), opts, timestamp.Now().I64())
	return uint64(len(evs)), nil
}

// EventMatchesFilters implements event_matches_filters?.
func (s *Store) EventMatchesFilters(id eventid.T, f *filters.T) (bool, error) {
	s.mx.RLock()
	ev, ok := s.byId[id.Hex()]
	s.mx.RUnlock()
	if !ok {
		return false, nil
	}
	if ev.Kind.IsEphemeral() {
		return false, nil
	}
	return f.Matches(ev), nil
}

var _ store.I = (*Store)(nil)
