package pipeline

import (
	"nostrium.dev/encoders/filters"
	"nostrium.dev/encoders/hex"
	"nostrium.dev/encoders/hll"
	"nostrium.dev/encoders/kind"
	"nostrium.dev/interfaces/server"
	"nostrium.dev/interfaces/store"
	"nostrium.dev/protocol/envelopes/authenvelope"
	"nostrium.dev/protocol/envelopes/closedenvelope"
	"nostrium.dev/protocol/envelopes/closeenvelope"
	"nostrium.dev/protocol/envelopes/countenvelope"
	"nostrium.dev/protocol/envelopes/eoseenvelope"
	"nostrium.dev/protocol/envelopes/eventenvelope"
	"nostrium.dev/protocol/envelopes/okenvelope"
	"nostrium.dev/protocol/envelopes/reqenvelope"
	"nostrium.dev/utils/context"
	"nostrium.dev/utils/errorf"
	"nostrium.dev/utils/normalize"
)

// subscriber is the subset of the connection a REQ/CLOSE needs beyond the
// narrow pipeline.Connection: registering and dropping sub_id -> filter
// mappings. ws.Listener satisfies this.
type subscriber interface {
	Subscribe(subID string, f *filters.T)
	Unsubscribe(subID string)
}

// authSettable is the subset of the connection an accepted AUTH response
// needs to record the verified pubkey. ws.Listener satisfies this.
type authSettable interface {
	SetAuthed(pubkey []byte)
	Challenge() []byte
}

// MessageHandler is the final (8th) pipeline stage: it executes the accepted message's
// effect (§4.4, §4.5) and queues the protocol responses named in §4.2. App
// supplies the relay-wide write/read gates (restricted_writes,
// public_readable) and the storage/fan-out collaborators behind them.
type MessageHandler struct {
	App server.I

	// ExpectedRelayURL, if set, is compared against an AUTH event's
	// "relay" tag. A nil func skips the check.
	ExpectedRelayURL func() string
}

func (s *MessageHandler) Name() string { return "message_handler" }

func (s *MessageHandler) Run(ctx *Context) error {
	switch ctx.Label {
	case eventenvelope.L:
		return s.handleEvent(ctx)
	case authenvelope.L:
		return s.handleAuth(ctx)
	case reqenvelope.L:
		return s.handleReq(ctx)
	case countenvelope.L:
		return s.handleCount(ctx)
	case closeenvelope.L:
		return s.handleClose(ctx)
	default:
		return nil
	}
}

func (s *MessageHandler) handleEvent(ctx *Context) error {
	ev := ctx.Event
	id := hex.Enc(ev.Id)
	bg := context.Bg()

	if ok, reason := s.App.AcceptEvent(bg, ev, ctx.Conn.AuthedPubkey()); !ok {
		if f, merr := okenvelope.New(id, false, string(reason)).Marshal(); merr == nil {
			ctx.Queue(f)
		}
		return errorf.E("event_rejected")
	}

	accepted, message := s.App.AddEvent(bg, ev)
	if f, merr := okenvelope.New(id, accepted, string(message)).Marshal(); merr == nil {
		ctx.Queue(f)
	}
	if !accepted {
		return errorf.E("event_rejected")
	}
	return nil
}

func (s *MessageHandler) handleAuth(ctx *Context) error {
	ev := ctx.Event
	id := hex.Enc(ev.Id)
	reject := func(reason []byte) error {
		if f, merr := okenvelope.New(id, false, string(reason)).Marshal(); merr == nil {
			ctx.Queue(f)
		}
		return errorf.E("auth_rejected")
	}
	if ev.Kind != kind.ClientAuthentication {
		return reject(normalize.Invalid.F("wrong event kind for AUTH"))
	}
	as, ok := ctx.Conn.(authSettable)
	if !ok {
		return reject(normalize.Error.F("connection cannot authenticate"))
	}
	if challengeTag := ev.Tags.GetFirst("challenge"); challengeTag == nil ||
		string(challengeTag.Value()) != string(as.Challenge()) {
		return reject(normalize.Invalid.F("challenge mismatch"))
	}
	if s.ExpectedRelayURL != nil {
		want := s.ExpectedRelayURL()
		if relayTag := ev.Tags.GetFirst("relay"); want != "" &&
			(relayTag == nil || string(relayTag.Value()) != want) {
			return reject(normalize.Invalid.F("relay mismatch"))
		}
	}
	as.SetAuthed(ev.Pubkey)
	if f, merr := okenvelope.New(id, true, "").Marshal(); merr == nil {
		ctx.Queue(f)
	}
	return nil
}

func (s *MessageHandler) queryOpts(ctx *Context) *store.QueryOpts {
	opts := &store.QueryOpts{}
	if ctx.Conn.Authenticated() {
		opts.GiftWrapPresent = true
		opts.GiftWrapRecipients = []string{hex.Enc(ctx.Conn.AuthedPubkey())}
	}
	return opts
}

func (s *MessageHandler) handleReq(ctx *Context) error {
	bg := context.Bg()
	if ok, reason := s.App.AcceptReq(bg, ctx.Filters, ctx.Conn.AuthedPubkey()); !ok {
		if f, merr := closedenvelope.New(ctx.SubID, string(reason)).Marshal(); merr == nil {
			ctx.Queue(f)
		}
		return errorf.E("req_rejected")
	}
	evs, err := s.App.Storage().QueryEvents(bg, ctx.Filters, s.queryOpts(ctx))
	if err != nil {
		return errorf.E("query_error: %w", err)
	}
	for _, ev := range evs {
		if f, merr := (&eventenvelope.Result{SubscriptionId: ctx.SubID, Event: ev}).Marshal(); merr == nil {
			ctx.Queue(f)
		}
	}
	if sub, ok := ctx.Conn.(subscriber); ok {
		sub.Subscribe(ctx.SubID, ctx.Filters)
	}
	if f, merr := (&eoseenvelope.T{SubscriptionId: ctx.SubID}).Marshal(); merr == nil {
		ctx.Queue(f)
	}
	return nil
}

func (s *MessageHandler) handleCount(ctx *Context) error {
	bg := context.Bg()
	if ok, reason := s.App.AcceptReq(bg, ctx.Filters, ctx.Conn.AuthedPubkey()); !ok {
		if f, merr := closedenvelope.New(ctx.SubID, string(reason)).Marshal(); merr == nil {
			ctx.Queue(f)
		}
		return errorf.E("count_rejected")
	}
	resp := &countenvelope.Response{SubscriptionId: ctx.SubID}
	if target, ok := hllTarget(ctx.Filters); ok {
		evs, err := s.App.Storage().QueryEvents(bg, ctx.Filters, s.queryOpts(ctx))
		if err != nil {
			return errorf.E("count_error: %w", err)
		}
		sketch := hll.New(hll.DeriveOffset(target))
		for _, ev := range evs {
			sketch.AddPubkey(ev.Pubkey)
		}
		resp.Count = int64(len(evs))
		resp.Hll = sketch.Bytes()
	} else {
		n, err := s.App.Storage().CountEvents(bg, ctx.Filters, s.queryOpts(ctx))
		if err != nil {
			return errorf.E("count_error: %w", err)
		}
		resp.Count = int64(n)
	}
	if f, merr := resp.Marshal(); merr == nil {
		ctx.Queue(f)
	}
	return nil
}

// hllTarget reports the single author or "p"-tag value a COUNT's filter
// list names, the shape NIP-45's HyperLogLog assistance applies to: a lone
// filter constrained to exactly one such target and nothing else
// disambiguating (kinds/since/until/limit may still narrow it).
func hllTarget(f *filters.T) (target string, ok bool) {
	if f == nil || len(f.F) != 1 {
		return "", false
	}
	flt := f.F[0]
	if len(flt.Authors) == 1 && flt.Tags.Len() == 0 {
		return flt.Authors[0], true
	}
	if len(flt.Authors) == 0 {
		if pt := flt.Tags.GetAll("p"); len(pt) == 1 && pt[0].Len() == 2 {
			return string(pt[0].Value()), true
		}
	}
	return "", false
}

func (s *MessageHandler) handleClose(ctx *Context) error {
	if sub, ok := ctx.Conn.(subscriber); ok {
		sub.Unsubscribe(ctx.SubID)
	}
	return nil
}
