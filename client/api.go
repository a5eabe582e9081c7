package client

import (
	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/filter"
	"nostrium.dev/utils/context"
)

// Publish sends ev to the relay and waits for its OK, transparently
// retrying once with a NIP-42 AUTH round trip if the relay rejects it as
// restricted pending auth.
func (w *RelayWorker) Publish(ctx context.T, ev *event.E) (PublishResult, error) {
	errc := make(chan error, 1)
	reply := make(chan PublishResult, 1)
	if err := w.submit(ctx, cmdPublish{ev: ev, reply: reply, errc: errc}, errc); err != nil {
		return PublishResult{}, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-w.stopCh:
		return PublishResult{}, ErrSessionStopped
	case <-ctx.Done():
		return PublishResult{}, ctx.Err()
	}
}

// Count runs filters as a COUNT request and returns the relay's tally.
func (w *RelayWorker) Count(ctx context.T, filters []*filter.F) (CountResult, error) {
	errc := make(chan error, 1)
	reply := make(chan CountResult, 1)
	if err := w.submit(ctx, cmdCount{filters: filters, reply: reply, errc: errc}, errc); err != nil {
		return CountResult{}, err
	}
	select {
	case res := <-reply:
		if res.Err != nil {
			return CountResult{}, res.Err
		}
		return res, nil
	case <-w.stopCh:
		return CountResult{}, ErrSessionStopped
	case <-ctx.Done():
		return CountResult{}, ctx.Err()
	}
}

// Subscribe registers subID with filters against the relay, forwarding
// EVENT/EOSE/CLOSED frames to sub. Calling it twice with the same subID
// and the same sub is idempotent; a different sub fails ErrSubIDTaken.
func (w *RelayWorker) Subscribe(ctx context.T, subID string, filters []*filter.F, sub Listener) error {
	errc := make(chan error, 1)
	return w.submit(ctx, cmdSubscribe{subID: subID, filters: filters, sub: sub, errc: errc}, errc)
}

// Unsubscribe drops subID, sending CLOSE if connected.
func (w *RelayWorker) Unsubscribe(subID string) {
	select {
	case w.cmdCh <- cmdUnsubscribe{subID: subID}:
	case <-w.stopCh:
	}
}

// NegOpen starts a negentropy reconciliation turn for subID.
func (w *RelayWorker) NegOpen(ctx context.T, subID string, f *filter.F, msg string) (NegResult, error) {
	errc := make(chan error, 1)
	reply := make(chan NegResult, 1)
	if err := w.submit(ctx, cmdNegOpen{subID: subID, f: f, msg: msg, reply: reply, errc: errc}, errc); err != nil {
		return NegResult{}, err
	}
	return w.waitNeg(ctx, reply)
}

// NegMsg sends the next negentropy turn for an already-open subID. Returns
// ErrNegMsgPending if a turn is already outstanding.
func (w *RelayWorker) NegMsg(ctx context.T, subID string, msg string) (NegResult, error) {
	errc := make(chan error, 1)
	reply := make(chan NegResult, 1)
	if err := w.submit(ctx, cmdNegMsg{subID: subID, msg: msg, reply: reply, errc: errc}, errc); err != nil {
		return NegResult{}, err
	}
	return w.waitNeg(ctx, reply)
}

// NegClose ends subID's negentropy session, sending NEG-CLOSE if connected.
func (w *RelayWorker) NegClose(subID string) {
	select {
	case w.cmdCh <- cmdNegClose{subID: subID}:
	case <-w.stopCh:
	}
}

func (w *RelayWorker) waitNeg(ctx context.T, reply chan NegResult) (NegResult, error) {
	select {
	case res := <-reply:
		if res.Err != nil {
			return NegResult{}, res.Err
		}
		return res, nil
	case <-w.stopCh:
		return NegResult{}, ErrSessionStopped
	case <-ctx.Done():
		return NegResult{}, ctx.Err()
	}
}

// submit sends cmd to the worker loop and waits for its immediate
// accept/reject on errc, bounding the wait by ctx and the worker's own
// shutdown.
func (w *RelayWorker) submit(ctx context.T, cmd any, errc chan error) error {
	select {
	case w.cmdCh <- cmd:
	case <-w.stopCh:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-w.stopCh:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
