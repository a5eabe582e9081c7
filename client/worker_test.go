package client

import (
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/filter"
	"nostrium.dev/encoders/hex"
	"nostrium.dev/encoders/kind"
	"nostrium.dev/encoders/timestamp"
	"nostrium.dev/protocol/envelopes"
	"nostrium.dev/protocol/envelopes/authenvelope"
	"nostrium.dev/protocol/envelopes/countenvelope"
	"nostrium.dev/protocol/envelopes/eoseenvelope"
	"nostrium.dev/protocol/envelopes/eventenvelope"
	"nostrium.dev/protocol/envelopes/okenvelope"
	"nostrium.dev/utils/context"
)

// fakeConn is an in-memory Conn: writes are captured on a channel, reads
// are served from an inbound channel the test feeds, modeling a relay's
// side of the wire without touching a real socket.
type fakeConn struct {
	writeCh  chan []byte
	incoming chan []byte
	closeOnce sync.Once
	closed   chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		writeCh:  make(chan []byte, 16),
		incoming: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) WriteMessage(p []byte) error {
	frame := append([]byte(nil), p...)
	select {
	case c.writeCh <- frame:
	default:
	}
	return nil
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case b, ok := <-c.incoming:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, frame []byte) {
	t.Helper()
	select {
	case c.incoming <- frame:
	case <-time.After(time.Second):
		t.Fatal("fakeConn: push timed out")
	}
}

func (c *fakeConn) nextWrite(t *testing.T) []byte {
	t.Helper()
	select {
	case f := <-c.writeCh:
		return f
	case <-time.After(time.Second):
		t.Fatal("fakeConn: timed out waiting for a write")
		return nil
	}
}

type fakeTransport struct{ conn *fakeConn }

func (f *fakeTransport) Dial(ctx context.T, rawurl string, header http.Header) (Conn, error) {
	return f.conn, nil
}

type fakeSigner struct{ pub, sec []byte }

func newFakeSigner() *fakeSigner {
	return &fakeSigner{
		pub: []byte{0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02},
		sec: []byte{0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01},
	}
}

func (s *fakeSigner) Generate() error             { return nil }
func (s *fakeSigner) InitSec(sec []byte) error     { s.sec = sec; return nil }
func (s *fakeSigner) InitPub(pub []byte) error     { s.pub = pub; return nil }
func (s *fakeSigner) Sec() []byte                  { return s.sec }
func (s *fakeSigner) Pub() []byte                  { return s.pub }
func (s *fakeSigner) Sign(msg []byte) ([]byte, error)      { return make([]byte, 64), nil }
func (s *fakeSigner) Verify(msg, sig []byte) (bool, error) { return true, nil }

func newTestWorker(t *testing.T) (*RelayWorker, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	key, err := NewSessionKey("wss://relay.example.com", pk)
	require.NoError(t, err)
	w := newRelayWorker(key, Options{
		Pubkey:    pk,
		Signer:    newFakeSigner(),
		Transport: &fakeTransport{conn: conn},
	})
	go w.run(context.Bg())
	require.Eventually(t, func() bool { return w.Phase() == Connected }, time.Second, time.Millisecond)
	t.Cleanup(w.Shutdown)
	return w, conn
}

func signedTextNote(t *testing.T, s *fakeSigner, content string) *event.E {
	t.Helper()
	ev := event.New()
	ev.Kind = kind.Text
	ev.CreatedAt = timestamp.Now()
	ev.Content = []byte(content)
	require.NoError(t, ev.Sign(s))
	return ev
}

func parseEventID(t *testing.T, frame []byte) string {
	t.Helper()
	label, rest, err := envelopes.Identify(frame)
	require.NoError(t, err)
	require.Equal(t, envelopes.L(eventenvelope.L), label)
	sub, err := eventenvelope.ParseSubmission(rest)
	require.NoError(t, err)
	return hex.Enc(sub.Event.Id)
}

func TestRelayWorkerPublishAccepted(t *testing.T) {
	w, conn := newTestWorker(t)
	signer := w.opts.Signer.(*fakeSigner)
	ev := signedTextNote(t, signer, "hello")

	resCh := make(chan PublishResult, 1)
	go func() {
		res, err := w.Publish(context.Bg(), ev)
		require.NoError(t, err)
		resCh <- res
	}()

	frame := conn.nextWrite(t)
	id := parseEventID(t, frame)

	okFrame, err := (&okenvelope.T{EventId: id, Accepted: true, Message: ""}).Marshal()
	require.NoError(t, err)
	conn.push(t, okFrame)

	select {
	case res := <-resCh:
		require.True(t, res.Accepted)
	case <-time.After(2 * time.Second):
		t.Fatal("publish never completed")
	}
}

func TestRelayWorkerPublishAuthRetry(t *testing.T) {
	w, conn := newTestWorker(t)
	signer := w.opts.Signer.(*fakeSigner)
	ev := signedTextNote(t, signer, "needs auth")

	// Relay challenges before the client ever publishes.
	authFrame, err := (&authenvelope.Challenge{Challenge: "chal-123"}).Marshal()
	require.NoError(t, err)
	conn.push(t, authFrame)

	resCh := make(chan PublishResult, 1)
	go func() {
		res, err := w.Publish(context.Bg(), ev)
		require.NoError(t, err)
		resCh <- res
	}()

	firstFrame := conn.nextWrite(t)
	firstID := parseEventID(t, firstFrame)
	rejectFrame, err := (&okenvelope.T{EventId: firstID, Accepted: false, Message: "restricted: requires auth"}).Marshal()
	require.NoError(t, err)
	conn.push(t, rejectFrame)

	authRespFrame := conn.nextWrite(t)
	label, rest, err := envelopes.Identify(authRespFrame)
	require.NoError(t, err)
	require.Equal(t, envelopes.L(authenvelope.L), label)
	authResp, err := authenvelope.Parse(rest)
	require.NoError(t, err)
	authOK, err := (&okenvelope.T{EventId: hex.Enc(authResp.Event.Id), Accepted: true, Message: ""}).Marshal()
	require.NoError(t, err)
	conn.push(t, authOK)

	resendFrame := conn.nextWrite(t)
	resendID := parseEventID(t, resendFrame)
	require.Equal(t, firstID, resendID)
	finalOK, err := (&okenvelope.T{EventId: resendID, Accepted: true, Message: ""}).Marshal()
	require.NoError(t, err)
	conn.push(t, finalOK)

	select {
	case res := <-resCh:
		require.True(t, res.Accepted)
	case <-time.After(2 * time.Second):
		t.Fatal("publish with auth retry never completed")
	}
}

func TestRelayWorkerCount(t *testing.T) {
	w, conn := newTestWorker(t)
	f := filter.New()
	f.Kinds = append(f.Kinds, kind.Text)

	resCh := make(chan CountResult, 1)
	go func() {
		res, err := w.Count(context.Bg(), []*filter.F{f})
		require.NoError(t, err)
		resCh <- res
	}()

	frame := conn.nextWrite(t)
	label, rest, err := envelopes.Identify(frame)
	require.NoError(t, err)
	require.Equal(t, envelopes.L(countenvelope.L), label)
	req, err := countenvelope.ParseRequest(rest)
	require.NoError(t, err)

	respFrame, err := (&countenvelope.Response{SubscriptionId: req.SubscriptionId, Count: 7}).Marshal()
	require.NoError(t, err)
	conn.push(t, respFrame)

	select {
	case res := <-resCh:
		require.EqualValues(t, 7, res.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("count never completed")
	}
}

func TestRelayWorkerSubscribeDeliversEvents(t *testing.T) {
	w, conn := newTestWorker(t)

	notifCh := make(chan Notification, 4)
	listener := ListenerFunc(func(n Notification) { notifCh <- n })

	f := filter.New()
	f.Kinds = append(f.Kinds, kind.Text)
	require.NoError(t, w.Subscribe(context.Bg(), "sub1", []*filter.F{f}, listener))
	conn.nextWrite(t) // REQ

	signer := w.opts.Signer.(*fakeSigner)
	delivered := signedTextNote(t, signer, "gm")
	resultFrame, err := (&eventenvelope.Result{SubscriptionId: "sub1", Event: delivered}).Marshal()
	require.NoError(t, err)
	conn.push(t, resultFrame)

	select {
	case n := <-notifCh:
		require.Equal(t, KindNostrEvent, n.Kind)
		require.Equal(t, "gm", string(n.Event.Content))
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}

	eoseFrame, err := (&eoseenvelope.T{SubscriptionId: "sub1"}).Marshal()
	require.NoError(t, err)
	conn.push(t, eoseFrame)

	select {
	case n := <-notifCh:
		require.Equal(t, KindNostrEose, n.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("eose never delivered")
	}
}

func TestRelayWorkerSubscribeSameListenerIdempotent(t *testing.T) {
	w, _ := newTestWorker(t)
	listener := ListenerFunc(func(Notification) {})
	f := filter.New()

	require.NoError(t, w.Subscribe(context.Bg(), "sub1", []*filter.F{f}, listener))
	require.NoError(t, w.Subscribe(context.Bg(), "sub1", []*filter.F{f}, listener))
}

func TestRelayWorkerSubscribeDifferentListenerFails(t *testing.T) {
	w, _ := newTestWorker(t)
	f := filter.New()

	require.NoError(t, w.Subscribe(context.Bg(), "sub1", []*filter.F{f}, ListenerFunc(func(Notification) {})))
	err := w.Subscribe(context.Bg(), "sub1", []*filter.F{f}, ListenerFunc(func(Notification) {}))
	require.ErrorIs(t, err, ErrSubIDTaken)
}

func TestRelayWorkerNegOpenReplaced(t *testing.T) {
	w, conn := newTestWorker(t)
	f := filter.New()

	firstCh := make(chan NegResult, 1)
	firstErrCh := make(chan error, 1)
	go func() {
		res, err := w.NegOpen(context.Bg(), "neg1", f, "initial-msg")
		firstErrCh <- err
		firstCh <- res
	}()
	conn.nextWrite(t) // first NEG-OPEN

	// A second NEG-OPEN for the same sub_id replaces the first turn.
	go func() {
		_, _ = w.NegOpen(context.Bg(), "neg1", f, "replacement-msg")
	}()
	conn.nextWrite(t) // second NEG-OPEN

	select {
	case err := <-firstErrCh:
		require.ErrorIs(t, err, ErrNegClosedReplaced)
	case <-time.After(2 * time.Second):
		t.Fatal("first NEG-OPEN was never superseded")
	}
}

func TestRelayWorkerNegMsgPendingRejected(t *testing.T) {
	w, conn := newTestWorker(t)
	f := filter.New()

	go func() { _, _ = w.NegOpen(context.Bg(), "neg1", f, "m0") }()
	conn.nextWrite(t)

	time.Sleep(10 * time.Millisecond) // let NEG-OPEN register before NEG-MSG races it
	_, err := w.NegMsg(context.Bg(), "neg1", "m1")
	require.ErrorIs(t, err, ErrNegMsgPending)
}

func TestRelayWorkerStopFailsPendingPublish(t *testing.T) {
	w, conn := newTestWorker(t)
	signer := w.opts.Signer.(*fakeSigner)
	ev := signedTextNote(t, signer, "never acked")

	resCh := make(chan PublishResult, 1)
	go func() {
		res, _ := w.Publish(context.Bg(), ev)
		resCh <- res
	}()
	conn.nextWrite(t)

	w.Shutdown()

	select {
	case res := <-resCh:
		require.False(t, res.Accepted)
	case <-time.After(2 * time.Second):
		t.Fatal("publish waiter was never failed on shutdown")
	}
	<-w.Done()
}
