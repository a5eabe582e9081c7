package client

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/filter"
	"nostrium.dev/interfaces/signer"
	"nostrium.dev/utils/context"
)

// RelayMode is a multi-relay session member's read/write capability.
type RelayMode int

const (
	ModeRead RelayMode = iota
	ModeReadWrite
)

func (m RelayMode) String() string {
	if m == ModeReadWrite {
		return "read_write"
	}
	return "read"
}

// RelayMembership is one entry of MultiRelaySession.ListRelays.
type RelayMembership struct {
	URL  string
	Mode RelayMode
}

// PublishFanOut is one relay's outcome of MultiRelaySession.Publish.
type PublishFanOut struct {
	Result PublishResult
	Err    error
}

// CountFanOut is one relay's outcome of MultiRelaySession.Count.
type CountFanOut struct {
	Result CountResult
	Err    error
}

type relayMember struct {
	url    string
	mode   RelayMode
	worker *RelayWorker
}

// MultiRelaySession is a logical session spanning a mutable set of relay
// workers: membership (URL, mode, worker) that fans publish/count out in
// parallel and prunes itself when a member's worker exits.
type MultiRelaySession struct {
	ctx     context.T
	manager *Manager
	pubkey  string
	signer  signer.I
	notify  Listener
	timeout time.Duration

	mu      sync.Mutex
	members map[string]*relayMember
}

// NewMultiRelaySession builds an empty multi-relay session. timeout bounds
// each member's per-request fan-out wait; notify, if non-nil, receives
// relay_error/relay_removed notifications when a member worker exits.
func NewMultiRelaySession(ctx context.T, manager *Manager, pubkey string, s signer.I, notify Listener, timeout time.Duration) *MultiRelaySession {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MultiRelaySession{
		ctx: ctx, manager: manager, pubkey: pubkey, signer: s, notify: notify,
		timeout: timeout, members: map[string]*relayMember{},
	}
}

// AddRelay starts (or reuses) a session for rawurl and adds it to the
// membership at mode. Adding an already-member URL updates its mode.
func (s *MultiRelaySession) AddRelay(rawurl string, mode RelayMode) error {
	w, err := s.manager.GetOrStartSession(s.ctx, rawurl, Options{Pubkey: s.pubkey, Signer: s.signer})
	if err != nil {
		return err
	}
	key := w.Key()

	s.mu.Lock()
	if existing, ok := s.members[key.URL]; ok {
		existing.mode = mode
		s.mu.Unlock()
		return nil
	}
	member := &relayMember{url: key.URL, mode: mode, worker: w}
	s.members[key.URL] = member
	s.mu.Unlock()

	go s.monitor(member)
	return nil
}

// RemoveRelay drops url from the membership. The underlying worker, which
// the session only held a weak reference to, keeps running for any other
// owner.
func (s *MultiRelaySession) RemoveRelay(url string) {
	s.mu.Lock()
	delete(s.members, url)
	s.mu.Unlock()
}

// UpdateRelayMode changes an existing member's mode. Returns false if url
// is not a member.
func (s *MultiRelaySession) UpdateRelayMode(url string, mode RelayMode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[url]
	if !ok {
		return false
	}
	m.mode = mode
	return true
}

// ListRelays returns the membership sorted by URL.
func (s *MultiRelaySession) ListRelays() []RelayMembership {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RelayMembership, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, RelayMembership{URL: m.url, Mode: m.mode})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// monitor waits for member's worker to exit and, if the membership still
// points at that worker, removes it and notifies relay_error/relay_removed.
func (s *MultiRelaySession) monitor(member *relayMember) {
	select {
	case <-member.worker.Done():
	case <-s.ctx.Done():
		return
	}
	s.mu.Lock()
	current, ok := s.members[member.url]
	if ok && current.worker == member.worker {
		delete(s.members, member.url)
	} else {
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	notify(s.notify, Notification{Kind: KindRelayError, RelayURL: member.url, Reason: member.worker.StopErr()})
	notify(s.notify, Notification{Kind: KindRelayRemoved, RelayURL: member.url})
}

func (s *MultiRelaySession) writeMembers() []*relayMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*relayMember, 0, len(s.members))
	for _, m := range s.members {
		if m.mode == ModeReadWrite {
			out = append(out, m)
		}
	}
	return out
}

func (s *MultiRelaySession) readableMembers() []*relayMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*relayMember, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	return out
}

// Publish fans ev out to every read_write member in parallel, each bounded
// by the session's per-member timeout, and returns a url -> outcome map.
func (s *MultiRelaySession) Publish(ctx context.T, ev *event.E) map[string]PublishFanOut {
	targets := s.writeMembers()
	results := make(map[string]PublishFanOut, len(targets))
	var mu sync.Mutex
	var g errgroup.Group
	for _, m := range targets {
		m := m
		g.Go(func() error {
			cctx, cancel := context.Timeout(ctx, s.timeout)
			defer cancel()
			res, err := m.worker.Publish(cctx, ev)
			mu.Lock()
			results[m.url] = PublishFanOut{Result: res, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Count fans filters out to every read and read_write member in parallel,
// each bounded by the session's per-member timeout.
func (s *MultiRelaySession) Count(ctx context.T, filters []*filter.F) map[string]CountFanOut {
	targets := s.readableMembers()
	results := make(map[string]CountFanOut, len(targets))
	var mu sync.Mutex
	var g errgroup.Group
	for _, m := range targets {
		m := m
		g.Go(func() error {
			cctx, cancel := context.Timeout(ctx, s.timeout)
			defer cancel()
			res, err := m.worker.Count(cctx, filters)
			mu.Lock()
			results[m.url] = CountFanOut{Result: res, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
