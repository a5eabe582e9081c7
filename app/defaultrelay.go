package app

import (
	"nostrium.dev/app/config"
	"nostrium.dev/interfaces/relay"
	"nostrium.dev/interfaces/store"
	"nostrium.dev/protocol/relayinfo"
	"nostrium.dev/utils/context"
	"nostrium.dev/utils/log"
	"nostrium.dev/version"
)

// Relay is the default relay.I implementation: it owns nothing beyond the
// configuration and event store a Server needs, and renders its own NIP-11
// document from the same configuration the pipeline's RelayPolicyValidator
// enforces.
type Relay struct {
	C     *config.C
	Store store.I
}

var (
	_ relay.I             = (*Relay)(nil)
	_ relay.Informationer = (*Relay)(nil)
	_ relay.Logger        = (*Relay)(nil)
)

// Name satisfies relay.I.
func (r *Relay) Name() string { return r.C.RelayName }

// Init satisfies relay.I. The event store is opened by Server.NewServer
// before this runs; nothing else needs warming up.
func (r *Relay) Init() error { return nil }

// Storage satisfies relay.I.
func (r *Relay) Storage() store.I { return r.Store }

// GetNIP11InformationDocument satisfies relay.Informationer.
func (r *Relay) GetNIP11InformationDocument() *relayinfo.T {
	lim := relayinfo.DefaultLimitation()
	lim.MaxMessageLength = r.C.MaxMessageLength
	lim.MaxSubscriptions = r.C.MaxSubscriptions
	lim.MaxLimit = r.C.MaxLimit
	lim.MaxSubidLength = r.C.MaxSubidLength
	lim.MaxEventTags = r.C.MaxEventTags
	lim.MaxContentLength = r.C.MaxContentLength
	lim.MinPowDifficulty = r.C.MinPowDifficulty
	lim.RestrictedWrites = r.C.RestrictedWrites
	lim.CreatedAtLowerLimit = r.C.CreatedAtLowerLimit
	lim.CreatedAtUpperLimit = r.C.CreatedAtUpperLimit
	lim.DefaultLimit = r.C.DefaultLimit
	lim.AuthRequired = r.C.AuthRequired

	return &relayinfo.T{
		Name:        r.C.RelayName,
		Description: r.C.RelayDescription,
		Software:    "https://nostrium.dev",
		Version:     version.V,
		SupportedNIPs: []int{
			1, 9, 11, 13, 40, 42, 45, 50, 59, 70,
		},
		Limitation: lim,
	}
}

// Infof satisfies relay.Logger.
func (r *Relay) Infof(format string, v ...any) { log.I.F(format, v...) }

// Warningf satisfies relay.Logger.
func (r *Relay) Warningf(format string, v ...any) { log.W.F(format, v...) }

// Errorf satisfies relay.Logger.
func (r *Relay) Errorf(format string, v ...any) { log.E.F(format, v...) }

// OnShutdown satisfies relay.ShutdownAware.
func (r *Relay) OnShutdown(c context.T) { log.I.Ln("relay shutting down") }
