// Package publisher is the broadcast collaborator a connection registers
// with the process-wide event bus (§4.5): it receives every newly stored
// event and decides whether to deliver it to its own subscribers.
package publisher

import (
	"nostrium.dev/encoders/event"
	"nostrium.dev/interfaces/typer"
)

// I is a fan-out target: one per live connection.
type I interface {
	typer.T
	// Deliver hands a freshly stored event to the publisher so it can test
	// it against its subscription filters and, on a match, queue an EVENT
	// frame for its connection.
	Deliver(ev *event.E)
	// Receive accepts an arbitrary typed message from the bus, used for
	// signals other than new-event (e.g. shutdown notices).
	Receive(msg typer.T)
}

// Publishers is the registry of live publishers the bus broadcasts to.
type Publishers []I
