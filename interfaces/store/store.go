// Package store is the persistence collaborator the relay and pipeline
// depend on for durable storage, filter/count queries, replaceable-event
// collapse, NIP-09 deletion masking, NIP-40 expiration and NIP-50 search.
// It is composed of small interfaces so a partial or test-double
// implementation can satisfy only the methods its caller needs.
package store

import (
	"io"

	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/eventid"
	"nostrium.dev/encoders/filters"
	"nostrium.dev/utils/context"
)

// InsertResult is the outcome of an insert_event call.
type InsertResult int

const (
	Inserted InsertResult = iota
	Duplicate
)

// QueryOpts carries the gift-wrap and group visibility parameters
// query_events and count_events both accept.
type QueryOpts struct {
	// GiftWrapRecipients, when non-nil, restricts kind-4/1059 visibility to
	// wrapped events whose "p" tag values intersect this list. A nil slice
	// means "exclude all such events"; a present-but-empty slice (use
	// GiftWrapPresent) means "exclude all"; a non-empty slice means
	// "include only matches".
	GiftWrapRecipients []string
	GiftWrapPresent    bool
	GroupViewerPubkeys []string
}

// I is the full persistence surface a relay implementation needs.
type I interface {
	io.Closer
	Initer
	Pather
	Wiper
	Querent
	Counter
	Matcher
	Saver
	Deleter
	Syncer
	LogLeveler
}

// Initer opens the backing store and rebuilds any in-memory indices.
type Initer interface {
	Init(path string) error
}

// Pather returns the store's on-disk location.
type Pather interface {
	Path() string
}

// Wiper deletes everything in the store. Test-only per the specification.
type Wiper interface {
	Wipe() error
}

// Querent runs query_events: ordered, filtered, collapsed, masked reads.
type Querent interface {
	QueryEvents(c context.T, f *filters.T, opts *QueryOpts) (event.Events, error)
}

// Counter runs count_events: same filtering, no materialization.
type Counter interface {
	CountEvents(c context.T, f *filters.T, opts *QueryOpts) (uint64, error)
}

// Matcher runs event_matches_filters?, used by fan-out.
type Matcher interface {
	EventMatchesFilters(id eventid.T, f *filters.T) (bool, error)
}

// Saver runs insert_event.
type Saver interface {
	SaveEvent(c context.T, ev *event.E) (InsertResult, error)
}

// Deleter removes or tombstones an event by id, used by store-internal
// bookkeeping (NIP-09 masking is a read-time filter, not a physical
// delete, but administrative wipe paths still need this).
type Deleter interface {
	DeleteEvent(c context.T, id eventid.T) error
}

// Syncer flushes any buffered writes.
type Syncer interface {
	Sync() error
}

// LogLeveler adjusts the store's internal log verbosity at runtime.
type LogLeveler interface {
	SetLogLevel(level string)
}
