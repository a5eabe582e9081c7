package client

import "nostrium.dev/utils/errorf"

// PublishResult is the outcome of a publish request, correlated from the
// relay's OK frame.
type PublishResult struct {
	Accepted bool
	Message  string
}

// CountResult is the outcome of a count request, correlated from the
// relay's COUNT reply. Err is set when the relay closed the query instead
// of answering it, or when the worker stopped while it was outstanding.
type CountResult struct {
	Count int64
	Hll   []byte
	Err   error
}

// NegResult is the outcome of a negentropy turn, correlated from the
// relay's NEG-MSG/NEG-ERR reply. Err is set when the turn failed or was
// superseded; Msg is only meaningful when Err is nil.
type NegResult struct {
	Msg string
	Err error
}

// ErrNotConnected is returned by any request made while the worker's phase
// is not connected.
var ErrNotConnected = errorf.E("not_connected")

// ErrSubIDTaken is returned when a subscription registers a sub_id already
// owned by a different subscriber.
var ErrSubIDTaken = errorf.E("sub_id_taken")

// ErrNegMsgPending is returned when a NEG-MSG is requested while one is
// already outstanding for the same sub_id.
var ErrNegMsgPending = errorf.E("neg_msg_already_pending")

// ErrSessionStopped marks a waiter failed because the worker stopped
// while the request was outstanding.
var ErrSessionStopped = errorf.E("session_stopped")

// ErrNegClosedReplaced marks a negentropy waiter failed because a second
// NEG-OPEN replaced it before it completed.
var ErrNegClosedReplaced = errorf.E("neg_closed: replaced")
