package relay

import (
	"net/http"

	"nostrium.dev/app/config"
	"nostrium.dev/encoders/event"
	"nostrium.dev/interfaces/publisher"
	"nostrium.dev/interfaces/relay"
	"nostrium.dev/interfaces/store"
	"nostrium.dev/utils/context"
)

func (s *Server) Context() context.T { return s.Ctx }

func (s *Server) Config() *config.C { return s.cfg }

func (s *Server) Relay() relay.I { return s.rl }

func (s *Server) Storage() store.I { return s.rl.Storage() }

// Publisher satisfies interfaces/server.I: a snapshot of the connections
// currently registered with the bus, each a *ws.Listener registered at
// upgrade time.
func (s *Server) Publisher() publisher.Publishers { return s.bus.Snapshot() }

// Publish broadcasts ev to every registered connection via the bus.
func (s *Server) Publish(ev *event.E) { s.bus.Broadcast(ev) }

func (s *Server) AuthRequired() bool { return s.cfg.AuthRequired }

func (s *Server) PublicReadable() bool { return s.cfg.PublicReadable }

func (s *Server) OwnersPubkeys() []string { return s.cfg.RelayOwners }
