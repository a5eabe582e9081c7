package relay

import (
	"nostrium.dev/protocol/ws"
	"nostrium.dev/utils/log"
)

func (s *Server) disconnect() {
	s.clientsMx.Lock()
	defer s.clientsMx.Unlock()
	for id, client := range s.clients {
		log.I.F("closing client %s", client.RealRemote())
		_ = client.Close()
		s.bus.Unregister(id)
		delete(s.clients, id)
	}
}

func (s *Server) registerClient(id string, l *ws.Listener) {
	s.clientsMx.Lock()
	s.clients[id] = l
	s.clientsMx.Unlock()
	s.bus.Register(id, l)
}

func (s *Server) unregisterClient(id string) {
	s.clientsMx.Lock()
	delete(s.clients, id)
	s.clientsMx.Unlock()
	s.bus.Unregister(id)
}
