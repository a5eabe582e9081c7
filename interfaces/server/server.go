// Package server is the surface a connection handler needs from the
// relay's HTTP/WebSocket server: storage, policy decisions, and the
// publisher registry for fan-out.
package server

import (
	"net/http"

	"nostrium.dev/app/config"
	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/filters"
	"nostrium.dev/interfaces/publisher"
	"nostrium.dev/interfaces/relay"
	"nostrium.dev/interfaces/store"
	"nostrium.dev/utils/context"
)

// I is the full surface app/relay.Server exposes to the per-connection
// pipeline and handlers.
type I interface {
	Context() context.T
	Config() *config.C
	Relay() relay.I
	Storage() store.I
	Shutdown()

	// HandleRelayInfo renders the NIP-11 document for an
	// application/nostr+json request.
	HandleRelayInfo(w http.ResponseWriter, r *http.Request)

	// AcceptEvent is the relay-wide gate on whether an EVENT submission,
	// already validated by the earlier pipeline stages, may proceed to
	// storage (e.g. write restrictions).
	AcceptEvent(c context.T, ev *event.E, authedPubkey []byte) (ok bool, reason []byte)
	// AcceptReq is the relay-wide gate on whether a REQ/COUNT's filters
	// may proceed (e.g. public-readable policy).
	AcceptReq(c context.T, f *filters.T, authedPubkey []byte) (ok bool, reason []byte)

	// AddEvent runs an accepted event through storage and fan-out, and
	// returns the OK frame payload.
	AddEvent(c context.T, ev *event.E) (accepted bool, message []byte)

	// AdminAuth reports whether pubkey is a configured relay owner/admin.
	AdminAuth(pubkey []byte) bool
	// UserAuth reports whether pubkey is allowed to authenticate at all
	// under the configured auth mode (whitelist/denylist).
	UserAuth(pubkey []byte) bool

	// Publisher returns the fan-out registry new connections register
	// with.
	Publisher() publisher.Publishers
	// Publish broadcasts ev to every registered publisher.
	Publish(ev *event.E)

	AuthRequired() bool
	PublicReadable() bool
	// ServiceURL derives this relay's own ws:// or wss:// URL from an
	// inbound HTTP request, for the NIP-42 relay-URL check.
	ServiceURL(r *http.Request) string
	// OwnersPubkeys lists the relay operator's own pubkeys.
	OwnersPubkeys() []string
}
