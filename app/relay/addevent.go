package relay

import (
	"nostrium.dev/encoders/event"
	"nostrium.dev/interfaces/store"
	"nostrium.dev/utils/context"
	"nostrium.dev/utils/normalize"
)

// AddEvent runs an accepted event through storage and fan-out (§4.4, §4.5).
// A duplicate insert still reports accepted=true per NIP-01: the relay
// already has the event, so there is nothing to reject.
func (s *Server) AddEvent(c context.T, ev *event.E) (accepted bool, message []byte) {
	res, err := s.Storage().SaveEvent(c, ev)
	if err != nil {
		return false, normalize.Error.F("%v", err)
	}
	if res == store.Duplicate {
		return true, normalize.Duplicate.F("already have this event")
	}
	s.Publish(ev)
	return true, []byte("event accepted")
}
