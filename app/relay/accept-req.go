package relay

import (
	"nostrium.dev/encoders/filters"
	"nostrium.dev/utils/context"
	"nostrium.dev/utils/normalize"
)

// AcceptReq is the relay-wide read gate (§6 public_readable): distinct from
// and additional to auth_required (enforced earlier by the pipeline's
// AuthEnforcer stage regardless of this setting). When public_readable is
// false, an unauthenticated REQ/COUNT is refused even if auth_required
// itself is off, letting an operator run an invite-only relay without
// forcing NIP-42 on every request.
func (s *Server) AcceptReq(c context.T, f *filters.T, authedPubkey []byte) (ok bool, reason []byte) {
	if s.cfg.PublicReadable || len(authedPubkey) > 0 {
		return true, nil
	}
	return false, normalize.Restricted.F("this relay does not serve unauthenticated reads")
}
