// Package relay is the relay's HTTP/WebSocket server: it owns the listener,
// the broadcast bus new connections register with, and the relay-wide
// policy gates a connection's pipeline consults before touching storage.
package relay

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/cors"

	"nostrium.dev/app/config"
	"nostrium.dev/interfaces/relay"
	"nostrium.dev/interfaces/server"
	"nostrium.dev/interfaces/signer"
	"nostrium.dev/protocol/bus"
	"nostrium.dev/protocol/ws"
	"nostrium.dev/utils/chk"
	"nostrium.dev/utils/context"
	"nostrium.dev/utils/log"
)

// Server is the relay's HTTP/WebSocket front door.
type Server struct {
	Ctx    context.T
	Cancel context.F

	cfg       *config.C
	rl        relay.I
	bus       *bus.Bus
	newSigner func() signer.I

	mux        *http.ServeMux
	httpServer *http.Server

	clientsMx sync.Mutex
	clients   map[string]*ws.Listener
}

var _ server.I = (*Server)(nil)

// ServerParams are NewServer's construction arguments.
type ServerParams struct {
	Ctx       context.T
	Cancel    context.F
	Rl        relay.I
	Cfg       *config.C
	NewSigner func() signer.I
}

// NewServer opens the relay's storage and builds a Server, then runs the
// relay's own Init hook in the background.
func NewServer(sp *ServerParams) (s *Server, err error) {
	if sto := sp.Rl.Storage(); sto != nil {
		if err = sto.Init(sp.Cfg.DataDir); chk.E(err) {
			return nil, err
		}
	}
	s = &Server{
		Ctx:       sp.Ctx,
		Cancel:    sp.Cancel,
		cfg:       sp.Cfg,
		rl:        sp.Rl,
		bus:       bus.New(),
		newSigner: sp.NewSigner,
		mux:       http.NewServeMux(),
		clients:   map[string]*ws.Listener{},
	}
	go func() {
		if err := s.rl.Init(); chk.E(err) {
			s.Shutdown()
		}
	}()
	return s, nil
}

// ServeHTTP routes the root path to the WebSocket upgrade or the NIP-11
// document, and everything else to the registered mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		if r.Header.Get("Upgrade") == "websocket" {
			s.handleWebsocket(w, r)
			return
		}
		if r.Header.Get("Accept") == "application/nostr+json" {
			s.HandleRelayInfo(w, r)
			return
		}
	}
	log.I.F("http request: %s from %s", r.URL.String(), remoteAddr(r))
	s.mux.ServeHTTP(w, r)
}

// Start opens the listener configured in cfg and serves until Shutdown.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Listen, strconv.Itoa(s.cfg.Port))
	log.I.F("starting relay listener at %s", addr)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Handler:           cors.Default().Handler(s),
		Addr:              addr,
		ReadHeaderTimeout: 7 * time.Second,
		IdleTimeout:       28 * time.Second,
	}
	if err = s.httpServer.Serve(ln); errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, closes every client socket and the
// event store, and notifies the relay if it cares.
func (s *Server) Shutdown() {
	log.I.Ln("shutting down relay")
	s.Cancel()
	s.disconnect()
	if sto := s.rl.Storage(); sto != nil {
		log.W.Ln("closing event store")
		chk.E(sto.Close())
	}
	if s.httpServer != nil {
		log.W.Ln("shutting down relay listener")
		chk.E(s.httpServer.Shutdown(s.Ctx))
	}
	if f, ok := s.rl.(relay.ShutdownAware); ok {
		f.OnShutdown(s.Ctx)
	}
}

// Router returns the mux that handles every non-websocket, non-NIP-11 path.
func (s *Server) Router() *http.ServeMux { return s.mux }

func remoteAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}
