package relay

import (
	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/hex"
	"nostrium.dev/utils/context"
	"nostrium.dev/utils/normalize"
)

// AcceptEvent is the relay-wide write gate (§6 restricted_writes): when
// restricted_writes is set, only a configured owner may publish. The
// NIP-42/NIP-09/NIP-59/NIP-70 checks run earlier, as pipeline stages.
func (s *Server) AcceptEvent(c context.T, ev *event.E, authedPubkey []byte) (ok bool, reason []byte) {
	if !s.cfg.RestrictedWrites {
		return true, nil
	}
	if s.isOwner(ev.Pubkey) {
		return true, nil
	}
	return false, normalize.Restricted.F("this relay only accepts events from its owners")
}

func (s *Server) isOwner(pubkey []byte) bool {
	hexKey := hex.Enc(pubkey)
	for _, o := range s.cfg.RelayOwners {
		if o == hexKey {
			return true
		}
	}
	return false
}
