package pipeline

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostrium.dev/app/config"
	"nostrium.dev/crypto/p256k/btcec"
	"nostrium.dev/database"
	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/filter"
	"nostrium.dev/encoders/filters"
	"nostrium.dev/encoders/hex"
	"nostrium.dev/encoders/kind"
	"nostrium.dev/encoders/tag"
	"nostrium.dev/encoders/timestamp"
	"nostrium.dev/interfaces/publisher"
	"nostrium.dev/interfaces/relay"
	"nostrium.dev/interfaces/store"
	"nostrium.dev/protocol/envelopes"
	"nostrium.dev/protocol/envelopes/authenvelope"
	"nostrium.dev/protocol/envelopes/closedenvelope"
	"nostrium.dev/protocol/envelopes/closeenvelope"
	"nostrium.dev/protocol/envelopes/countenvelope"
	"nostrium.dev/protocol/envelopes/eoseenvelope"
	"nostrium.dev/protocol/envelopes/eventenvelope"
	"nostrium.dev/protocol/envelopes/okenvelope"
	"nostrium.dev/protocol/envelopes/reqenvelope"
	pcontext "nostrium.dev/utils/context"
)

func newTestHandlerStore(t *testing.T) *database.Store {
	t.Helper()
	st := database.New()
	require.NoError(t, st.Init(t.TempDir()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func signStoredNote(t *testing.T, st *database.Store, content string) *event.E {
	t.Helper()
	s := btcec.NewSigner()
	require.NoError(t, s.Generate())
	ev := event.New()
	ev.CreatedAt = timestamp.Now()
	ev.Kind = kind.Text
	ev.Content = []byte(content)
	require.NoError(t, ev.Sign(s))
	_, err := st.SaveEvent(pcontext.Bg(), ev)
	require.NoError(t, err)
	return ev
}

func filtersOf(k kind.T) *filters.T {
	f := filter.New()
	f.Kinds = []kind.T{k}
	return filters.New(f)
}

// fakeServer is a minimal server.I double driving MessageHandler tests:
// AcceptEvent/AcceptReq/AddEvent return the fixed results held in its
// fields, everything else behind them is a thin no-op.
type fakeServer struct {
	store store.I

	acceptEventOK     bool
	acceptEventReason []byte
	addEventOK        bool
	addEventMessage   []byte
	acceptReqOK       bool
	acceptReqReason   []byte
}

func (f *fakeServer) Context() pcontext.T                      { return pcontext.Bg() }
func (f *fakeServer) Config() *config.C                        { return &config.C{} }
func (f *fakeServer) Relay() relay.I                           { return nil }
func (f *fakeServer) Storage() store.I                         { return f.store }
func (f *fakeServer) Shutdown()                                {}
func (f *fakeServer) HandleRelayInfo(http.ResponseWriter, *http.Request) {}
func (f *fakeServer) AcceptEvent(pcontext.T, *event.E, []byte) (bool, []byte) {
	return f.acceptEventOK, f.acceptEventReason
}
func (f *fakeServer) AcceptReq(pcontext.T, *filters.T, []byte) (bool, []byte) {
	return f.acceptReqOK, f.acceptReqReason
}
func (f *fakeServer) AddEvent(pcontext.T, *event.E) (bool, []byte) {
	return f.addEventOK, f.addEventMessage
}
func (f *fakeServer) AdminAuth([]byte) bool             { return false }
func (f *fakeServer) UserAuth([]byte) bool              { return true }
func (f *fakeServer) Publisher() publisher.Publishers   { return nil }
func (f *fakeServer) Publish(*event.E)                  {}
func (f *fakeServer) AuthRequired() bool                { return false }
func (f *fakeServer) PublicReadable() bool              { return true }
func (f *fakeServer) ServiceURL(*http.Request) string   { return "wss://relay.example.com/" }
func (f *fakeServer) OwnersPubkeys() []string            { return nil }

// handlerFakeConn extends the stages_test.go fakeConn with the
// subscriber/authSettable methods handler.go type-asserts for.
type handlerFakeConn struct {
	fakeConn
	subs      map[string]*filters.T
	challenge []byte
	authedPk  []byte
}

func newHandlerFakeConn() *handlerFakeConn {
	return &handlerFakeConn{subs: map[string]*filters.T{}}
}

func (c *handlerFakeConn) Subscribe(subID string, f *filters.T) { c.subs[subID] = f }
func (c *handlerFakeConn) Unsubscribe(subID string)              { delete(c.subs, subID) }
func (c *handlerFakeConn) Challenge() []byte                     { return c.challenge }
func (c *handlerFakeConn) SetAuthed(pubkey []byte) {
	c.authed = true
	c.authedPk = pubkey
	c.pubkey = pubkey
}

func parseOK(t *testing.T, frame []byte) *okenvelope.T {
	t.Helper()
	_, rest, err := envelopes.Identify(frame)
	require.NoError(t, err)
	o, err := okenvelope.Parse(rest)
	require.NoError(t, err)
	return o
}

func TestHandleEventQueuesAcceptedOK(t *testing.T) {
	s := btcec.NewSigner()
	require.NoError(t, s.Generate())
	ev := event.New()
	ev.CreatedAt = timestamp.Now()
	ev.Kind = kind.Text
	ev.Content = []byte("hi")
	require.NoError(t, ev.Sign(s))

	h := &MessageHandler{App: &fakeServer{acceptEventOK: true, addEventOK: true}}
	ctx := &Context{Label: eventenvelope.L, Event: ev, Conn: &fakeConn{}}
	require.NoError(t, h.Run(ctx))

	got := parseOK(t, ctx.QueuedFrames[0])
	assert.True(t, got.Accepted)
}

func TestHandleEventQueuesRejectedOKWhenAcceptEventFails(t *testing.T) {
	s := btcec.NewSigner()
	require.NoError(t, s.Generate())
	ev := event.New()
	ev.CreatedAt = timestamp.Now()
	ev.Kind = kind.Text
	require.NoError(t, ev.Sign(s))

	h := &MessageHandler{App: &fakeServer{acceptEventOK: false, acceptEventReason: []byte("blocked: banned")}}
	ctx := &Context{Label: eventenvelope.L, Event: ev, Conn: &fakeConn{}}
	err := h.Run(ctx)
	assert.Error(t, err)

	got := parseOK(t, ctx.QueuedFrames[0])
	assert.False(t, got.Accepted)
	assert.Equal(t, "blocked: banned", got.Message)
}

func TestHandleAuthAcceptsMatchingChallenge(t *testing.T) {
	s := btcec.NewSigner()
	require.NoError(t, s.Generate())
	ev := event.New()
	ev.CreatedAt = timestamp.Now()
	ev.Kind = kind.ClientAuthentication
	ev.Tags.Append(tag.New("challenge", "abc123"))
	require.NoError(t, ev.Sign(s))

	conn := newHandlerFakeConn()
	conn.challenge = []byte("abc123")

	h := &MessageHandler{App: &fakeServer{}}
	ctx := &Context{Label: authenvelope.L, Event: ev, Conn: conn}
	require.NoError(t, h.Run(ctx))

	assert.True(t, conn.authed)
	assert.Equal(t, ev.Pubkey, conn.authedPk)
	got := parseOK(t, ctx.QueuedFrames[0])
	assert.True(t, got.Accepted)
}

func TestHandleAuthRejectsChallengeMismatch(t *testing.T) {
	s := btcec.NewSigner()
	require.NoError(t, s.Generate())
	ev := event.New()
	ev.CreatedAt = timestamp.Now()
	ev.Kind = kind.ClientAuthentication
	ev.Tags.Append(tag.New("challenge", "wrong"))
	require.NoError(t, ev.Sign(s))

	conn := newHandlerFakeConn()
	conn.challenge = []byte("abc123")

	h := &MessageHandler{App: &fakeServer{}}
	ctx := &Context{Label: authenvelope.L, Event: ev, Conn: conn}
	assert.Error(t, h.Run(ctx))
	assert.False(t, conn.authed)
}

func TestHandleReqQueriesAndSubscribes(t *testing.T) {
	st := newTestHandlerStore(t)
	note := signStoredNote(t, st, "hello")

	conn := newHandlerFakeConn()
	f := filtersOf(kind.Text)
	h := &MessageHandler{App: &fakeServer{store: st, acceptReqOK: true}}
	ctx := &Context{Label: reqenvelope.L, SubID: "sub1", Filters: f, Conn: conn}
	require.NoError(t, h.Run(ctx))

	require.Len(t, ctx.QueuedFrames, 2)
	_, rest, err := envelopes.Identify(ctx.QueuedFrames[0])
	require.NoError(t, err)
	res, err := eventenvelope.ParseResult(rest)
	require.NoError(t, err)
	assert.Equal(t, note.Id, res.Event.Id)

	_, rest2, err := envelopes.Identify(ctx.QueuedFrames[1])
	require.NoError(t, err)
	eose, err := eoseenvelope.Parse(rest2)
	require.NoError(t, err)
	assert.Equal(t, "sub1", eose.SubscriptionId)

	assert.NotNil(t, conn.subs["sub1"])
}

func TestHandleReqRejectedQueuesClosed(t *testing.T) {
	h := &MessageHandler{App: &fakeServer{acceptReqOK: false, acceptReqReason: []byte("restricted: no reads")}}
	ctx := &Context{Label: reqenvelope.L, SubID: "sub1", Filters: filtersOf(kind.Text), Conn: newHandlerFakeConn()}
	assert.Error(t, h.Run(ctx))

	_, rest, err := envelopes.Identify(ctx.QueuedFrames[0])
	require.NoError(t, err)
	closed, err := closedenvelope.Parse(rest)
	require.NoError(t, err)
	assert.Equal(t, "restricted: no reads", closed.Message)
}

func TestHandleCountReturnsPlainCountWithoutHllTarget(t *testing.T) {
	st := newTestHandlerStore(t)
	signStoredNote(t, st, "hello")
	signStoredNote(t, st, "world")

	h := &MessageHandler{App: &fakeServer{store: st, acceptReqOK: true}}
	ctx := &Context{Label: countenvelope.L, SubID: "sub1", Filters: filtersOf(kind.Text), Conn: newHandlerFakeConn()}
	require.NoError(t, h.Run(ctx))

	_, rest, err := envelopes.Identify(ctx.QueuedFrames[0])
	require.NoError(t, err)
	resp, err := countenvelope.ParseResponse(rest)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Count)
	assert.Nil(t, resp.Hll)
}

func TestHandleCountBuildsHllForSingleAuthorFilter(t *testing.T) {
	st := newTestHandlerStore(t)
	ev := signStoredNote(t, st, "hello")

	f := filtersOf(kind.Text)
	f.F[0].Authors = []string{hex.Enc(ev.Pubkey)}

	h := &MessageHandler{App: &fakeServer{store: st, acceptReqOK: true}}
	ctx := &Context{Label: countenvelope.L, SubID: "sub1", Filters: f, Conn: newHandlerFakeConn()}
	require.NoError(t, h.Run(ctx))

	_, rest, err := envelopes.Identify(ctx.QueuedFrames[0])
	require.NoError(t, err)
	resp, err := countenvelope.ParseResponse(rest)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Count)
	assert.NotNil(t, resp.Hll)
}

func TestHandleCloseUnsubscribes(t *testing.T) {
	conn := newHandlerFakeConn()
	conn.subs["sub1"] = filtersOf(kind.Text)

	h := &MessageHandler{}
	ctx := &Context{Label: closeenvelope.L, SubID: "sub1", Conn: conn}
	require.NoError(t, h.Run(ctx))
	assert.Nil(t, conn.subs["sub1"])
}
