package client

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"lukechampine.com/frand"

	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/filter"
	"nostrium.dev/encoders/hex"
	"nostrium.dev/encoders/kind"
	"nostrium.dev/encoders/tag"
	"nostrium.dev/encoders/timestamp"
	"nostrium.dev/interfaces/signer"
	"nostrium.dev/protocol/envelopes"
	"nostrium.dev/protocol/envelopes/authenvelope"
	"nostrium.dev/protocol/envelopes/closedenvelope"
	"nostrium.dev/protocol/envelopes/closeenvelope"
	"nostrium.dev/protocol/envelopes/countenvelope"
	"nostrium.dev/protocol/envelopes/eoseenvelope"
	"nostrium.dev/protocol/envelopes/eventenvelope"
	"nostrium.dev/protocol/envelopes/negcloseenvelope"
	"nostrium.dev/protocol/envelopes/negerrenvelope"
	"nostrium.dev/protocol/envelopes/negmsgenvelope"
	"nostrium.dev/protocol/envelopes/negopenenvelope"
	"nostrium.dev/protocol/envelopes/noticeenvelope"
	"nostrium.dev/protocol/envelopes/okenvelope"
	"nostrium.dev/protocol/envelopes/reqenvelope"
	"nostrium.dev/utils/chk"
	"nostrium.dev/utils/context"
	"nostrium.dev/utils/errorf"
	"nostrium.dev/utils/log"
)

// Phase is a relay worker's connection lifecycle state.
type Phase int32

const (
	Disconnected Phase = iota
	Upgrading
	Connected
	Closing
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Upgrading:
		return "upgrading"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	}
	return "unknown"
}

type authState int

const (
	unauthenticated authState = iota
	authenticating
	authenticated
)

// Options configures a relay worker spawned by Manager.GetOrStartSession.
type Options struct {
	// Pubkey is the owning identity's 64-hex public key. Required.
	Pubkey string
	// Signer produces the NIP-42 AUTH event and any events the caller signs
	// through this session. Required.
	Signer signer.I
	// Notify receives worker lifecycle notifications. Optional.
	Notify Listener
	// Transport dials the relay. Defaults to DefaultTransport.
	Transport Transport
	// TransportOpts carries extra HTTP headers for the upgrade request.
	TransportOpts http.Header
	// AuthTimeout defaults to 10s. The worker does not read it: a publish
	// waiting on a NIP-42 round trip is bounded only by the caller's
	// context.
	AuthTimeout time.Duration
}

type publishWaiter struct {
	reply   chan PublishResult
	event   *event.E
	retried bool
}

type countWaiter struct {
	reply chan CountResult
}

type subscription struct {
	filters  []*filter.F
	listener Listener
}

type negState struct {
	pending bool
	reply   chan NegResult
}

// RelayWorker owns one WebSocket to one relay, per spec.md's Relay session
// (client side) entity. The fields from conn onward are touched only from
// within run — the worker's own handler loop — never from a public
// method's calling goroutine; phase and stopErr are guarded by mu.
type RelayWorker struct {
	key    SessionKey
	opts   Options
	cmdCh  chan any
	stopCh chan struct{}

	mu     sync.RWMutex
	phase  Phase
	stopErr error

	conn             Conn
	authPhase        authState
	challenge        string
	authEventID      string
	retryPublishID   string
	pendingPublishes map[string]*publishWaiter
	pendingCounts    map[string]*countWaiter
	subscriptions    map[string]*subscription
	negStates        map[string]*negState
}

func newRelayWorker(key SessionKey, opts Options) *RelayWorker {
	if opts.Transport == nil {
		opts.Transport = DefaultTransport
	}
	if opts.AuthTimeout == 0 {
		opts.AuthTimeout = 10 * time.Second
	}
	return &RelayWorker{
		key:              key,
		opts:             opts,
		cmdCh:            make(chan any, 64),
		stopCh:           make(chan struct{}),
		pendingPublishes: map[string]*publishWaiter{},
		pendingCounts:    map[string]*countWaiter{},
		subscriptions:    map[string]*subscription{},
		negStates:        map[string]*negState{},
	}
}

// Phase reports the worker's current lifecycle phase.
func (w *RelayWorker) Phase() Phase {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.phase
}

func (w *RelayWorker) setPhase(p Phase) {
	w.mu.Lock()
	w.phase = p
	w.mu.Unlock()
}

// Key returns the worker's normalized session key.
func (w *RelayWorker) Key() SessionKey { return w.key }

// Done returns a channel closed once the worker has fully stopped.
func (w *RelayWorker) Done() <-chan struct{} { return w.stopCh }

// run is the worker's single-writer handler loop: it owns every piece of
// mutable session state and is the only goroutine that touches it.
func (w *RelayWorker) run(ctx context.T) {
	w.setPhase(Upgrading)
	notify(w.opts.Notify, Notification{Kind: KindConnecting, RelayURL: w.key.URL})

	conn, err := w.opts.Transport.Dial(ctx, w.key.URL, w.opts.TransportOpts)
	if err != nil {
		w.stopWorker(errorf.E("upgrade_error: %w", err))
		return
	}
	w.conn = conn
	w.setPhase(Connected)
	notify(w.opts.Notify, Notification{Kind: KindConnected, RelayURL: w.key.URL})

	go w.readLoop(conn)

	for {
		select {
		case cmd := <-w.cmdCh:
			w.handle(cmd)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			w.stopWorker(ctx.Err())
			return
		}
	}
}

func (w *RelayWorker) readLoop(conn Conn) {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case w.cmdCh <- cmdReadErr{err: err}:
			case <-w.stopCh:
			}
			return
		}
		select {
		case w.cmdCh <- cmdFrame{raw: raw}:
		case <-w.stopCh:
			return
		}
	}
}

// Command types sent over cmdCh.
type (
	cmdFrame        struct{ raw []byte }
	cmdReadErr      struct{ err error }
	cmdPublish      struct {
		ev    *event.E
		reply chan PublishResult
		errc  chan error
	}
	cmdCount struct {
		filters []*filter.F
		reply   chan CountResult
		errc    chan error
	}
	cmdSubscribe struct {
		subID   string
		filters []*filter.F
		sub     Listener
		errc    chan error
	}
	cmdUnsubscribe struct{ subID string }
	cmdNegOpen     struct {
		subID string
		f     *filter.F
		msg   string
		reply chan NegResult
		errc  chan error
	}
	cmdNegMsg struct {
		subID string
		msg   string
		reply chan NegResult
		errc  chan error
	}
	cmdNegClose struct{ subID string }
	cmdStop     struct{}
)

func (w *RelayWorker) handle(cmd any) {
	switch c := cmd.(type) {
	case cmdFrame:
		w.handleFrame(c.raw)
	case cmdReadErr:
		w.stopWorker(errorf.E("stream_error: %w", c.err))
	case cmdPublish:
		w.doPublish(c)
	case cmdCount:
		w.doCount(c)
	case cmdSubscribe:
		w.doSubscribe(c)
	case cmdUnsubscribe:
		w.doUnsubscribe(c.subID)
	case cmdNegOpen:
		w.doNegOpen(c)
	case cmdNegMsg:
		w.doNegMsg(c)
	case cmdNegClose:
		w.doNegClose(c.subID)
	case cmdStop:
		w.stopWorker(nil)
	}
}

func (w *RelayWorker) connectedOrReject(errc chan error) bool {
	if w.Phase() != Connected {
		errc <- ErrNotConnected
		return false
	}
	return true
}

func (w *RelayWorker) doPublish(c cmdPublish) {
	if !w.connectedOrReject(c.errc) {
		return
	}
	id := hex.Enc(c.ev.Id)
	frame, err := (&eventenvelope.Submission{Event: c.ev}).Marshal()
	if err != nil {
		c.errc <- err
		return
	}
	if err := w.conn.WriteMessage(frame); err != nil {
		c.errc <- err
		return
	}
	w.pendingPublishes[id] = &publishWaiter{reply: c.reply, event: c.ev}
	c.errc <- nil
}

func (w *RelayWorker) doCount(c cmdCount) {
	if !w.connectedOrReject(c.errc) {
		return
	}
	queryID := hex.Enc(frand.Bytes(16))
	frame, err := (&countenvelope.Request{SubscriptionId: queryID, Filters: c.filters}).Marshal()
	if err != nil {
		c.errc <- err
		return
	}
	if err := w.conn.WriteMessage(frame); err != nil {
		c.errc <- err
		return
	}
	w.pendingCounts[queryID] = &countWaiter{reply: c.reply}
	c.errc <- nil
}

func (w *RelayWorker) doSubscribe(c cmdSubscribe) {
	if existing, ok := w.subscriptions[c.subID]; ok && !sameListener(existing.listener, c.sub) {
		c.errc <- ErrSubIDTaken
		return
	}
	if !w.connectedOrReject(c.errc) {
		return
	}
	req := &reqenvelope.T{SubscriptionId: c.subID, Filters: c.filters}
	frame, err := req.Marshal()
	if err != nil {
		c.errc <- err
		return
	}
	if err := w.conn.WriteMessage(frame); err != nil {
		c.errc <- err
		return
	}
	w.subscriptions[c.subID] = &subscription{filters: c.filters, listener: c.sub}
	c.errc <- nil
}

func (w *RelayWorker) doUnsubscribe(subID string) {
	delete(w.subscriptions, subID)
	if w.Phase() != Connected {
		return
	}
	frame, err := (&closeenvelope.T{SubscriptionId: subID}).Marshal()
	if chk.D(err) {
		return
	}
	_ = w.conn.WriteMessage(frame)
}

func (w *RelayWorker) doNegOpen(c cmdNegOpen) {
	if !w.connectedOrReject(c.errc) {
		return
	}
	if old, ok := w.negStates[c.subID]; ok && old.reply != nil {
		old.reply <- NegResult{Err: ErrNegClosedReplaced}
	}
	frame, err := (&negopenenvelope.T{SubscriptionId: c.subID, Filter: c.f, Msg: c.msg}).Marshal()
	if err != nil {
		c.errc <- err
		return
	}
	if err := w.conn.WriteMessage(frame); err != nil {
		c.errc <- err
		return
	}
	w.negStates[c.subID] = &negState{pending: true, reply: c.reply}
	c.errc <- nil
}

func (w *RelayWorker) doNegMsg(c cmdNegMsg) {
	if !w.connectedOrReject(c.errc) {
		return
	}
	st, ok := w.negStates[c.subID]
	if !ok {
		c.errc <- errorf.E("neg_not_open")
		return
	}
	if st.pending {
		c.errc <- ErrNegMsgPending
		return
	}
	frame, err := (&negmsgenvelope.T{SubscriptionId: c.subID, Msg: c.msg}).Marshal()
	if err != nil {
		c.errc <- err
		return
	}
	if err := w.conn.WriteMessage(frame); err != nil {
		c.errc <- err
		return
	}
	st.pending = true
	st.reply = c.reply
	c.errc <- nil
}

func (w *RelayWorker) doNegClose(subID string) {
	st, ok := w.negStates[subID]
	if ok {
		delete(w.negStates, subID)
		if st.reply != nil {
			st.reply <- NegResult{Err: errorf.E("neg_closed: local")}
		}
	}
	if w.Phase() != Connected {
		return
	}
	if frame, err := (&negcloseenvelope.T{SubscriptionId: subID}).Marshal(); err == nil {
		_ = w.conn.WriteMessage(frame)
	}
}

func (w *RelayWorker) handleFrame(raw []byte) {
	label, rest, err := envelopes.Identify(raw)
	if err != nil {
		return
	}
	switch label {
	case okenvelope.L:
		w.onOK(rest)
	case eventenvelope.L:
		w.onEvent(rest)
	case eoseenvelope.L:
		w.onEose(rest)
	case closedenvelope.L:
		w.onClosed(rest)
	case countenvelope.L:
		w.onCount(rest)
	case authenvelope.L:
		w.onAuth(rest)
	case negmsgenvelope.L:
		w.onNegMsg(rest)
	case negerrenvelope.L:
		w.onNegErr(rest)
	case noticeenvelope.L:
		w.onNotice(rest)
	default:
		log.D.F("worker %s: ignoring frame label %q", w.key.URL, label)
	}
}

func (w *RelayWorker) onOK(rest []json.RawMessage) {
	ok, err := okenvelope.Parse(rest)
	if chk.D(err) {
		return
	}
	if ok.EventId == w.authEventID {
		w.onAuthOK(ok.Accepted, ok.Message)
		return
	}
	pw, found := w.pendingPublishes[ok.EventId]
	if !found {
		return
	}
	// Heuristic: a "restricted" rejection whose message mentions "auth" in
	// any letter case is taken as a request to authenticate and retry once.
	if !ok.Accepted && !pw.retried && strings.HasPrefix(ok.Message, "restricted") &&
		strings.Contains(strings.ToLower(ok.Message), "auth") {
		pw.retried = true
		if err := w.startAuth(ok.EventId); chk.D(err) {
			delete(w.pendingPublishes, ok.EventId)
			pw.reply <- PublishResult{Accepted: false, Message: ok.Message}
		}
		return
	}
	delete(w.pendingPublishes, ok.EventId)
	pw.reply <- PublishResult{Accepted: ok.Accepted, Message: ok.Message}
}

func (w *RelayWorker) startAuth(triggerPublishID string) error {
	if w.challenge == "" {
		return errorf.E("no auth challenge received yet")
	}
	if w.opts.Signer == nil {
		return errorf.E("no signer configured")
	}
	ev := event.New()
	ev.Kind = kind.ClientAuthentication
	ev.CreatedAt = timestamp.Now()
	ev.Tags.Append(tag.New("relay", w.key.URL))
	ev.Tags.Append(tag.New("challenge", w.challenge))
	if err := ev.Sign(w.opts.Signer); err != nil {
		return err
	}
	frame, err := (&authenvelope.Response{Event: ev}).Marshal()
	if err != nil {
		return err
	}
	if err := w.conn.WriteMessage(frame); err != nil {
		return err
	}
	w.authPhase = authenticating
	w.authEventID = hex.Enc(ev.Id)
	w.retryPublishID = triggerPublishID
	return nil
}

func (w *RelayWorker) onAuthOK(accepted bool, message string) {
	triggerID := w.retryPublishID
	w.retryPublishID = ""
	w.authEventID = ""
	if !accepted {
		w.authPhase = unauthenticated
		if pw, ok := w.pendingPublishes[triggerID]; ok {
			delete(w.pendingPublishes, triggerID)
			pw.reply <- PublishResult{Accepted: false, Message: message}
		}
		return
	}
	w.authPhase = authenticated
	pw, ok := w.pendingPublishes[triggerID]
	if !ok {
		return
	}
	frame, err := (&eventenvelope.Submission{Event: pw.event}).Marshal()
	if chk.D(err) {
		delete(w.pendingPublishes, triggerID)
		pw.reply <- PublishResult{Accepted: false, Message: "error: re-send failed"}
		return
	}
	_ = w.conn.WriteMessage(frame)
}

func (w *RelayWorker) onAuth(rest []json.RawMessage) {
	if len(rest) != 1 {
		return
	}
	var challenge string
	if err := json.Unmarshal(rest[0], &challenge); err == nil {
		w.challenge = challenge
		return
	}
	// Client-to-relay form seen echoed back; nothing to do.
}

func (w *RelayWorker) onEvent(rest []json.RawMessage) {
	res, err := eventenvelope.ParseResult(rest)
	if chk.D(err) {
		return
	}
	sub, ok := w.subscriptions[res.SubscriptionId]
	if !ok {
		return
	}
	notify(sub.listener, Notification{Kind: KindNostrEvent, RelayURL: w.key.URL, SubID: res.SubscriptionId, Event: res.Event})
}

func (w *RelayWorker) onEose(rest []json.RawMessage) {
	e, err := eoseenvelope.Parse(rest)
	if chk.D(err) {
		return
	}
	sub, ok := w.subscriptions[e.SubscriptionId]
	if !ok {
		return
	}
	notify(sub.listener, Notification{Kind: KindNostrEose, RelayURL: w.key.URL, SubID: e.SubscriptionId})
}

func (w *RelayWorker) onClosed(rest []json.RawMessage) {
	c, err := closedenvelope.Parse(rest)
	if chk.D(err) {
		return
	}
	if cw, ok := w.pendingCounts[c.SubscriptionId]; ok {
		delete(w.pendingCounts, c.SubscriptionId)
		cw.reply <- CountResult{Err: errorf.E("closed: %s", c.Message)}
		return
	}
	sub, ok := w.subscriptions[c.SubscriptionId]
	if !ok {
		return
	}
	delete(w.subscriptions, c.SubscriptionId)
	notify(sub.listener, Notification{Kind: KindNostrClosed, RelayURL: w.key.URL, SubID: c.SubscriptionId, Message: c.Message})
}

func (w *RelayWorker) onCount(rest []json.RawMessage) {
	resp, err := countenvelope.ParseResponse(rest)
	if chk.D(err) {
		return
	}
	cw, ok := w.pendingCounts[resp.SubscriptionId]
	if !ok {
		return
	}
	delete(w.pendingCounts, resp.SubscriptionId)
	cw.reply <- CountResult{Count: resp.Count, Hll: resp.Hll}
}

func (w *RelayWorker) onNegMsg(rest []json.RawMessage) {
	m, err := negmsgenvelope.Parse(rest)
	if chk.D(err) {
		return
	}
	st, ok := w.negStates[m.SubscriptionId]
	if !ok || st.reply == nil {
		return
	}
	reply := st.reply
	st.pending, st.reply = false, nil
	reply <- NegResult{Msg: m.Msg}
}

func (w *RelayWorker) onNegErr(rest []json.RawMessage) {
	e, err := negerrenvelope.Parse(rest)
	if chk.D(err) {
		return
	}
	st, ok := w.negStates[e.SubscriptionId]
	delete(w.negStates, e.SubscriptionId)
	if !ok || st.reply == nil {
		return
	}
	reason := e.Msg
	if i := strings.IndexAny(reason, " \t"); i >= 0 {
		reason = reason[:i]
	}
	st.reply <- NegResult{Err: errorf.E("neg_err: %s", reason)}
}

func (w *RelayWorker) onNotice(rest []json.RawMessage) {
	n, err := noticeenvelope.Parse(rest)
	if chk.D(err) {
		return
	}
	notify(w.opts.Notify, Notification{Kind: KindNotice, RelayURL: w.key.URL, Message: n.Message})
}

// stopWorker tears the worker down: closes the transport, fails every
// outstanding waiter with {session_stopped, reason}, and notifies every
// subscriber. Idempotent.
func (w *RelayWorker) stopWorker(reason error) {
	if w.Phase() == Disconnected {
		return
	}
	w.setPhase(Closing)
	if w.conn != nil {
		_ = w.conn.Close()
	}
	for id, pw := range w.pendingPublishes {
		delete(w.pendingPublishes, id)
		pw.reply <- PublishResult{Accepted: false, Message: "session_stopped"}
	}
	for id, cw := range w.pendingCounts {
		delete(w.pendingCounts, id)
		cw.reply <- CountResult{Err: errSessionStoppedReason(reason)}
	}
	for id, st := range w.negStates {
		delete(w.negStates, id)
		if st.reply != nil {
			st.reply <- NegResult{Err: errSessionStoppedReason(reason)}
		}
	}
	for subID, sub := range w.subscriptions {
		delete(w.subscriptions, subID)
		notify(sub.listener, Notification{Kind: KindNostrClosed, RelayURL: w.key.URL, SubID: subID, Message: "session_stopped"})
	}
	w.mu.Lock()
	w.stopErr = reason
	w.phase = Disconnected
	w.mu.Unlock()
	notify(w.opts.Notify, Notification{Kind: KindSessionStopped, RelayURL: w.key.URL, Reason: reason})
	close(w.stopCh)
}

func errSessionStoppedReason(reason error) error {
	if reason == nil {
		return ErrSessionStopped
	}
	return errorf.E("session_stopped: %w", reason)
}

// StopErr returns the reason the worker last stopped for, if any.
func (w *RelayWorker) StopErr() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopErr
}

// Shutdown stops the worker's connection cleanly; the supervisor treats
// this as a normal shutdown and does not restart it.
func (w *RelayWorker) Shutdown() {
	select {
	case w.cmdCh <- cmdStop{}:
	case <-w.stopCh:
	}
}
