// Package bus is the process-wide broadcast channel new events travel on
// (§4.5): every connection's publisher registers itself once, and every
// stored event is delivered to every registered publisher, which decides
// for itself whether any of its own subscriptions match.
package bus

import (
	"github.com/puzpuzpuz/xsync/v3"

	"nostrium.dev/encoders/event"
	"nostrium.dev/interfaces/publisher"
	"nostrium.dev/interfaces/typer"
)

// Bus is the fan-out registry. The zero value is not usable; use New.
type Bus struct {
	subscribers *xsync.MapOf[string, publisher.I]
}

// New builds an empty bus.
func New() *Bus {
	return &Bus{subscribers: xsync.NewMapOf[string, publisher.I]()}
}

// Register adds p to the broadcast set, keyed by the caller-supplied id; a
// later Register with the same id replaces the earlier publisher.
func (b *Bus) Register(id string, p publisher.I) { b.subscribers.Store(id, p) }

// Unregister removes a publisher, called from on_close.
func (b *Bus) Unregister(id string) { b.subscribers.Delete(id) }

// Broadcast delivers ev to every registered publisher.
func (b *Bus) Broadcast(ev *event.E) {
	b.subscribers.Range(func(_ string, p publisher.I) bool {
		p.Deliver(ev)
		return true
	})
}

// Notify delivers an arbitrary typed message to every publisher, used for
// signals other than new-event fan-out (e.g. a shutdown notice).
func (b *Bus) Notify(msg typer.T) {
	b.subscribers.Range(func(_ string, p publisher.I) bool {
		p.Receive(msg)
		return true
	})
}

// Len reports the number of registered publishers.
func (b *Bus) Len() int { return b.subscribers.Size() }

// Snapshot returns the currently registered publishers.
func (b *Bus) Snapshot() publisher.Publishers {
	out := make(publisher.Publishers, 0, b.subscribers.Size())
	b.subscribers.Range(func(_ string, p publisher.I) bool {
		out = append(out, p)
		return true
	})
	return out
}
