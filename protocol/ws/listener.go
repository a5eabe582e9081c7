// Package ws implements the relay-side WebSocket connection (the server
// Listener, wrapping github.com/fasthttp/websocket) and the client-side
// Connection (wrapping github.com/gobwas/ws), each carrying the
// authentication and subscription state the pipeline and fan-out need.
package ws

import (
	"net/http"
	"strings"
	"sync"

	"github.com/fasthttp/websocket"

	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/filters"
	"nostrium.dev/encoders/hex"
	"nostrium.dev/encoders/kind"
	"nostrium.dev/interfaces/typer"
	"nostrium.dev/protocol/envelopes/eventenvelope"
	"nostrium.dev/utils/atomic"
)

// Listener is a relay-side WebSocket connection: one per accepted client,
// carrying its own subscription mapping and NIP-42 auth state.
type Listener struct {
	mutex   sync.Mutex
	Conn    *websocket.Conn
	Request *http.Request
	remote  atomic.String

	id string

	challenge     atomic.Bytes
	authedPubkey  atomic.Bytes
	isAuthed      atomic.Bool
	authRequested atomic.Bool

	subMx sync.RWMutex
	subs  map[string]*filters.T
}

// NewListener creates a new Listener for an accepted inbound connection.
func NewListener(conn *websocket.Conn, req *http.Request, id string) (ws *Listener) {
	ws = &Listener{Conn: conn, Request: req, id: id, subs: map[string]*filters.T{}}
	ws.setRemoteFromReq(req)
	return
}

func remoteFromReq(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func (ws *Listener) setRemoteFromReq(r *http.Request) {
	rr := remoteFromReq(r)
	if rr == "" && ws.Conn != nil {
		rr = ws.Conn.NetConn().RemoteAddr().String()
	}
	ws.remote.Store(rr)
}

// Write sends a text message to the client.
func (ws *Listener) Write(p []byte) (n int, err error) {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	err = ws.Conn.WriteMessage(websocket.TextMessage, p)
	if err != nil {
		n = len(p)
		if strings.Contains(err.Error(), "close sent") {
			_ = ws.Close()
			err = nil
			return
		}
	}
	return len(p), err
}

// WriteMessage wraps websocket.Conn.WriteMessage with the connection
// mutex held, so a pipeline response and a bus-triggered fan-out frame
// never interleave mid-write.
func (ws *Listener) WriteMessage(t int, b []byte) error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	return ws.Conn.WriteMessage(t, b)
}

// RealRemote returns the stored remote address of the client.
func (ws *Listener) RealRemote() string { return ws.remote.Load() }

// Remote is the client address used in log lines and rate-limit keys.
func (ws *Listener) Remote() string { return ws.RealRemote() }

// Req returns the originating HTTP upgrade request.
func (ws *Listener) Req() *http.Request { return ws.Request }

// Close closes the underlying connection.
func (ws *Listener) Close() (err error) { return ws.Conn.Close() }

// Type satisfies interfaces/typer.T, identifying this publisher kind to
// the bus.
func (ws *Listener) Type() string { return "websocket" }

// Challenge returns the NIP-42 challenge issued at upgrade, if any.
func (ws *Listener) Challenge() []byte { return ws.challenge.Load() }

// SetChallenge stores the NIP-42 challenge issued at upgrade.
func (ws *Listener) SetChallenge(c []byte) { ws.challenge.Store(c) }

// Authenticated reports whether the connection has a verified AUTH event
// on file.
func (ws *Listener) Authenticated() bool { return ws.isAuthed.Load() }

// AuthedPubkey returns the pubkey from the connection's verified AUTH
// event, or nil.
func (ws *Listener) AuthedPubkey() []byte { return ws.authedPubkey.Load() }

// SetAuthed records a successful AUTH.
func (ws *Listener) SetAuthed(pubkey []byte) {
	ws.authedPubkey.Store(pubkey)
	ws.isAuthed.Store(true)
}

// AuthRequested reports whether this connection has already been sent an
// AUTH challenge frame.
func (ws *Listener) AuthRequested() bool { return ws.authRequested.Load() }

// RequestAuth marks that an AUTH challenge frame has been sent.
func (ws *Listener) RequestAuth() { ws.authRequested.Store(true) }

// Subscribe records sub_id's filter list, replacing any existing entry of
// the same sub_id.
func (ws *Listener) Subscribe(subID string, f *filters.T) {
	ws.subMx.Lock()
	defer ws.subMx.Unlock()
	ws.subs[subID] = f
}

// Unsubscribe removes sub_id.
func (ws *Listener) Unsubscribe(subID string) {
	ws.subMx.Lock()
	defer ws.subMx.Unlock()
	delete(ws.subs, subID)
}

// SubscriptionCount reports the number of live subscriptions.
func (ws *Listener) SubscriptionCount() int {
	ws.subMx.RLock()
	defer ws.subMx.RUnlock()
	return len(ws.subs)
}

// Subscriptions returns a snapshot copy of the sub_id -> filters mapping.
func (ws *Listener) Subscriptions() map[string]*filters.T {
	ws.subMx.RLock()
	defer ws.subMx.RUnlock()
	out := make(map[string]*filters.T, len(ws.subs))
	for k, v := range ws.subs {
		out[k] = v
	}
	return out
}

// ID returns the connection's bus registration key.
func (ws *Listener) ID() string { return ws.id }

// Deliver implements publisher.I: for every live subscription whose
// filters match ev, subject to the kind-4/kind-1059 visibility rule
// (the connection must be authenticated as one of the recipient "p"
// tags), write an ["EVENT", sub_id, event] frame.
func (ws *Listener) Deliver(ev *event.E) {
	if !eventVisible(ev, ws) {
		return
	}
	for subID, f := range ws.Subscriptions() {
		if !f.Matches(ev) {
			continue
		}
		frame, err := (&eventenvelope.Result{SubscriptionId: subID, Event: ev}).Marshal()
		if err != nil {
			continue
		}
		_, _ = ws.Write(frame)
	}
}

func eventVisible(ev *event.E, ws *Listener) bool {
	if ev.Kind != kind.DM && ev.Kind != kind.GiftWrap {
		return true
	}
	if !ws.Authenticated() {
		return false
	}
	me := hex.Enc(ws.AuthedPubkey())
	for _, p := range ev.Tags.Values("p") {
		if p == me {
			return true
		}
	}
	return false
}

// Receive implements publisher.I for non-event bus signals. This relay
// has none defined yet; it is a no-op.
func (ws *Listener) Receive(msg typer.T) { _ = msg }
