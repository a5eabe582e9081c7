package relay

import (
	"crypto/rand"
	"net/http"

	"github.com/fasthttp/websocket"

	"nostrium.dev/app/config"
	"nostrium.dev/encoders/hex"
	"nostrium.dev/protocol/envelopes/authenvelope"
	"nostrium.dev/protocol/pipeline"
	"nostrium.dev/protocol/ws"
	"nostrium.dev/utils/chk"
	"nostrium.dev/utils/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func newChallenge() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); chk.E(err) {
		return hex.Enc(b)
	}
	return hex.Enc(b)
}

// handleWebsocket upgrades the connection, registers it with the bus, and
// runs its read loop through a freshly built pipeline.Engine. A fresh
// engine per connection costs little and sidesteps any shared-state
// concern across concurrently handled sockets, the same reasoning behind
// EventValidator's per-call signer.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		chk.E(err)
		return
	}
	id := hex.Enc([]byte(r.RemoteAddr)) + "-" + newChallenge()[:8]
	l := ws.NewListener(conn, r, id)
	serviceURL := s.ServiceURL(r)

	if s.cfg.AuthRequired {
		challenge := newChallenge()
		l.SetChallenge([]byte(challenge))
		if f, merr := (&authenvelope.Challenge{Challenge: challenge}).Marshal(); merr == nil {
			_, _ = l.Write(f)
		}
		l.RequestAuth()
	}

	s.registerClient(id, l)
	defer s.unregisterClient(id)

	engine := s.buildEngine(func() string { return serviceURL })

	for {
		_, raw, rerr := conn.ReadMessage()
		if rerr != nil {
			log.D.F("closing %s: %v", l.RealRemote(), rerr)
			return
		}
		ctx := &pipeline.Context{RawFrame: raw, Conn: l}
		for _, frame := range engine.Run(ctx) {
			if _, werr := l.Write(frame); werr != nil {
				return
			}
		}
	}
}

func (s *Server) buildEngine(expectedRelayURL func() string) *pipeline.Engine {
	cfg := s.cfg
	return pipeline.NewEngine(
		&pipeline.MessageSizeValidator{MaxLen: cfg.MaxMessageLength},
		&pipeline.ProtocolValidator{},
		&pipeline.AuthEnforcer{Required: func() bool { return cfg.AuthRequired }},
		&pipeline.MessageValidator{},
		&pipeline.EventValidator{NewSigner: s.newSigner},
		&pipeline.RelayPolicyValidator{
			Limitation:   func() config.C { return *cfg },
			MinPrefixLen: func() int { return cfg.MinPrefixLength },
		},
		&pipeline.StorePolicy{},
		&pipeline.MessageHandler{App: s, ExpectedRelayURL: expectedRelayURL},
	)
}
