package relay

import (
	"encoding/json"
	"net/http"

	"nostrium.dev/interfaces/relay"
	"nostrium.dev/protocol/relayinfo"
	"nostrium.dev/utils/chk"
	"nostrium.dev/utils/log"
)

// HandleRelayInfo renders the NIP-11 document for an application/nostr+json
// request, falling back to a minimal document if the configured relay
// doesn't implement relay.Informationer.
func (s *Server) HandleRelayInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	log.I.Ln("handling relay information document")
	var info *relayinfo.T
	if informationer, ok := s.rl.(relay.Informationer); ok {
		info = informationer.GetNIP11InformationDocument()
	} else {
		lim := relayinfo.DefaultLimitation()
		lim.AuthRequired = s.cfg.AuthRequired
		info = &relayinfo.T{Name: s.rl.Name(), Limitation: lim}
	}
	info.URL = s.ServiceURL(r)
	if err := json.NewEncoder(w).Encode(info); chk.E(err) {
	}
}
