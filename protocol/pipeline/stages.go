package pipeline

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"nostrium.dev/app/config"
	"nostrium.dev/encoders/filters"
	"nostrium.dev/encoders/hex"
	"nostrium.dev/encoders/kind"
	"nostrium.dev/encoders/subscription"
	"nostrium.dev/encoders/tags"
	"nostrium.dev/encoders/text"
	"nostrium.dev/encoders/timestamp"
	"nostrium.dev/interfaces/signer"
	"nostrium.dev/protocol/envelopes"
	"nostrium.dev/protocol/envelopes/authenvelope"
	"nostrium.dev/protocol/envelopes/closeenvelope"
	"nostrium.dev/protocol/envelopes/closedenvelope"
	"nostrium.dev/protocol/envelopes/countenvelope"
	"nostrium.dev/protocol/envelopes/eventenvelope"
	"nostrium.dev/protocol/envelopes/okenvelope"
	"nostrium.dev/protocol/envelopes/reqenvelope"
	"nostrium.dev/utils/errorf"
	"nostrium.dev/utils/normalize"
)

// MessageSizeValidator rejects frames over limitation.max_message_length.
// On reject it queues nothing — the engine falls back to a default NOTICE.
type MessageSizeValidator struct{ MaxLen int }

func (s *MessageSizeValidator) Name() string { return "message_size_validator" }

func (s *MessageSizeValidator) Run(ctx *Context) error {
	if s.MaxLen > 0 && len(ctx.RawFrame) > s.MaxLen {
		return errorf.E("message_too_large")
	}
	return nil
}

// ProtocolValidator parses the raw frame into one of the recognized
// envelope shapes, rejecting raw frames that fail the escape/literal
// policy checks or that don't parse as a JSON array.
type ProtocolValidator struct{}

func (s *ProtocolValidator) Name() string { return "protocol_validator" }

func (s *ProtocolValidator) Run(ctx *Context) error {
	if err := text.ValidateTopLevel(ctx.RawFrame); err != nil {
		return err
	}
	if err := text.ValidateEscapes(ctx.RawFrame); err != nil {
		return err
	}
	label, rest, err := envelopes.Identify(ctx.RawFrame)
	if err != nil {
		return errorf.E("invalid_message_format: %w", err)
	}
	ctx.Label = label

	switch label {
	case eventenvelope.L:
		sub, err := eventenvelope.ParseSubmission(rest)
		if err != nil {
			return errorf.E("invalid_message_format: %w", err)
		}
		ctx.Event = sub.Event
	case reqenvelope.L:
		req, err := reqenvelope.Parse(rest)
		if err != nil {
			return errorf.E("invalid_message_format: %w", err)
		}
		ctx.SubID = req.SubscriptionId
		ctx.Filters = filters.New(req.Filters...)
	case countenvelope.L:
		req, err := countenvelope.ParseRequest(rest)
		if err != nil {
			return errorf.E("invalid_message_format: %w", err)
		}
		ctx.SubID = req.SubscriptionId
		ctx.Filters = filters.New(req.Filters...)
	case closeenvelope.L:
		c, err := closeenvelope.Parse(rest)
		if err != nil {
			return errorf.E("invalid_message_format: %w", err)
		}
		ctx.SubID = c.SubscriptionId
	case authenvelope.L:
		resp, err := authenvelope.Parse(rest)
		if err != nil {
			return errorf.E("invalid_message_format: %w", err)
		}
		ctx.Event = resp.Event
	default:
		return errorf.E("unsupported_message_type")
	}
	return nil
}

// AuthEnforcer rejects EVENT/REQ/COUNT when auth_required and the
// connection has not authenticated. AUTH and CLOSE always pass.
type AuthEnforcer struct{ Required func() bool }

func (s *AuthEnforcer) Name() string { return "auth_enforcer" }

func (s *AuthEnforcer) Run(ctx *Context) error {
	if ctx.Label == authenvelope.L || ctx.Label == closeenvelope.L {
		return nil
	}
	if !s.Required() || ctx.Conn.Authenticated() {
		return nil
	}
	reason := normalize.AuthRequired.F("authentication required")
	switch ctx.Label {
	case eventenvelope.L:
		id := ""
		if ctx.Event != nil {
			id = hex.Enc(ctx.Event.Id)
		}
		if f, err := okenvelope.New(id, false, string(reason)).Marshal(); err == nil {
			ctx.Queue(f)
		}
	case reqenvelope.L, countenvelope.L:
		if f, err := closedenvelope.New(ctx.SubID, string(reason)).Marshal(); err == nil {
			ctx.Queue(f)
		}
	}
	return errorf.E("auth_required")
}

// MessageValidator rejects shapes the relay doesn't support, and requires
// a non-empty filter list on REQ/COUNT.
type MessageValidator struct{}

func (s *MessageValidator) Name() string { return "message_validator" }

func (s *MessageValidator) Run(ctx *Context) error {
	switch ctx.Label {
	case eventenvelope.L, authenvelope.L, closeenvelope.L:
		return nil
	case reqenvelope.L, countenvelope.L:
		if ctx.Filters == nil || len(ctx.Filters.F) == 0 {
			if f, err := closedenvelope.New(ctx.SubID, string(normalize.Invalid.F("filter list must not be empty"))).Marshal(); err == nil {
				ctx.Queue(f)
			}
			return errorf.E("unsupported_message_type")
		}
		return nil
	default:
		return errorf.E("unsupported_message_type")
	}
}

// EventValidator recomputes an EVENT's id and verifies its signature.
// NewSigner builds a fresh verify-only signer.I per call since a signer's
// loaded public key is call-specific state that must not be shared across
// the concurrently-handled connections that all run the same stage list.
type EventValidator struct{ NewSigner func() signer.I }

func (s *EventValidator) Name() string { return "event_validator" }

func (s *EventValidator) Run(ctx *Context) error {
	if ctx.Label != eventenvelope.L && ctx.Label != authenvelope.L {
		return nil
	}
	ev := ctx.Event
	if ev == nil {
		return errorf.E("invalid_event_id")
	}
	claimedId := hex.Enc(ev.Id)
	reject := func(reason []byte) error {
		if f, err := okenvelope.New(claimedId, false, string(reason)).Marshal(); err == nil {
			ctx.Queue(f)
		}
		return errorf.E("invalid_event")
	}
	if !ev.IdMatches() {
		return reject(normalize.Invalid.F("invalid: id does not match canonical serialization"))
	}
	valid, err := ev.VerifySignature(s.NewSigner())
	if err != nil || !valid {
		return reject(normalize.Invalid.F("invalid: bad signature"))
	}
	return nil
}

// RelayPolicyValidator enforces every limitation.* knob (§6): event age
// bounds, tag/content size caps, NIP-13 PoW, subscription/subid limits,
// and min_prefix_length on REQ/COUNT filters.
type RelayPolicyValidator struct {
	Limitation   func() config.C
	MinPrefixLen func() int
}

func (s *RelayPolicyValidator) Name() string { return "relay_policy_validator" }

func (s *RelayPolicyValidator) Run(ctx *Context) error {
	lim := s.Limitation()
	switch ctx.Label {
	case eventenvelope.L:
		ev := ctx.Event
		id := hex.Enc(ev.Id)
		reject := func(reason []byte) error {
			if f, err := okenvelope.New(id, false, string(reason)).Marshal(); err == nil {
				ctx.Queue(f)
			}
			return errorf.E("relay_policy_rejected")
		}
		now := timestamp.Now()
		if lim.CreatedAtLowerLimit > 0 && int64(now)-ev.CreatedAt.I64() > lim.CreatedAtLowerLimit {
			return reject(normalize.Invalid.F("created_at_lower_limit_exceeded"))
		}
		if lim.CreatedAtUpperLimit > 0 && ev.CreatedAt.I64()-int64(now) > lim.CreatedAtUpperLimit {
			return reject(normalize.Invalid.F("created_at_upper_limit_exceeded"))
		}
		if lim.MaxEventTags > 0 && ev.Tags.Len() > lim.MaxEventTags {
			return reject(normalize.Invalid.F("too_many_event_tags"))
		}
		if lim.MaxContentLength > 0 && utf8.RuneCount(ev.Content) > lim.MaxContentLength {
			return reject(normalize.Invalid.F("content_too_long"))
		}
		if lim.MinPowDifficulty > 0 {
			committed, ok := powCommittedTarget(ev.Tags)
			if !ok {
				return reject(normalize.PoW.F("no nonce commitment"))
			}
			if committed < lim.MinPowDifficulty {
				return reject(normalize.PoW.F("committed target %d is less than %d", committed, lim.MinPowDifficulty))
			}
			if powDifficulty(ev.Id) < lim.MinPowDifficulty {
				return reject(normalize.PoW.F("difficulty %d is less than %d", powDifficulty(ev.Id), lim.MinPowDifficulty))
			}
		}
		return nil
	case reqenvelope.L, countenvelope.L:
		maxSubid := lim.MaxSubidLength
		if maxSubid <= 0 {
			maxSubid = subscription.DefaultMaxLen
		}
		if err := subscription.Validate(ctx.SubID, maxSubid); err != nil {
			if f, merr := closedenvelope.New(ctx.SubID, string(normalize.Invalid.F("%s", err.Error()))).Marshal(); merr == nil {
				ctx.Queue(f)
			}
			return err
		}
		minPrefix := s.MinPrefixLen()
		if minPrefix > 0 {
			for _, f := range ctx.Filters.F {
				if !prefixesLongEnough(f.Ids, minPrefix) || !prefixesLongEnough(f.Authors, minPrefix) {
					if fr, err := closedenvelope.New(ctx.SubID, string(normalize.Invalid.F("prefix_too_short"))).Marshal(); err == nil {
						ctx.Queue(fr)
					}
					return errorf.E("prefix_too_short")
				}
			}
		}
		if ctx.Label == reqenvelope.L && lim.MaxSubscriptions > 0 {
			if ctx.Conn.SubscriptionCount() >= lim.MaxSubscriptions {
				if fr, err := closedenvelope.New(ctx.SubID, string(normalize.Restricted.F("too_many_subscriptions"))).Marshal(); err == nil {
					ctx.Queue(fr)
				}
				return errorf.E("too_many_subscriptions")
			}
		}
		for _, f := range ctx.Filters.F {
			if f.Limit == nil {
				def := uint(lim.DefaultLimit)
				f.Limit = &def
			} else if lim.MaxLimit > 0 && *f.Limit > uint(lim.MaxLimit) {
				clamped := uint(lim.MaxLimit)
				f.Limit = &clamped
			}
		}
		return nil
	default:
		return nil
	}
}

func prefixesLongEnough(prefixes []string, min int) bool {
	for _, p := range prefixes {
		if len(p) != 64 && len(p) < min {
			return false
		}
	}
	return true
}

// powCommittedTarget reads the target difficulty an event's nonce tag
// commits to: ["nonce", <nonce>, <committed target>]. The third field is
// required; without it the event carries no PoW commitment at all.
func powCommittedTarget(tgs *tags.T) (int, bool) {
	nonce := tgs.GetFirst("nonce")
	if nonce == nil || nonce.Len() < 3 {
		return 0, false
	}
	target, err := strconv.Atoi(string(nonce.Get(2)))
	if err != nil {
		return 0, false
	}
	return target, true
}

// powDifficulty counts the leading zero bits of id, the NIP-13 difficulty
// of an event's proof of work.
func powDifficulty(id []byte) int {
	n := 0
	for _, b := range id {
		if b == 0 {
			n += 8
			continue
		}
		for i := 7; i >= 0; i-- {
			if b&(1<<uint(i)) != 0 {
				return n
			}
			n++
		}
	}
	return n
}

// StorePolicy runs the NIP-09/NIP-59/NIP-70 structural checks that are
// cheap enough to run before storage but depend on cross-tag invariants
// rather than single-field limits.
type StorePolicy struct{}

func (s *StorePolicy) Name() string { return "store_policy" }

func (s *StorePolicy) Run(ctx *Context) error {
	if ctx.Label != eventenvelope.L {
		return nil
	}
	ev := ctx.Event
	id := hex.Enc(ev.Id)
	reject := func(reason []byte) error {
		if f, err := okenvelope.New(id, false, string(reason)).Marshal(); err == nil {
			ctx.Queue(f)
		}
		return errorf.E("store_policy_rejected")
	}

	if ev.Kind == kind.Deletion {
		signerHex := hex.Enc(ev.Pubkey)
		for _, aTarget := range ev.Tags.Values("a") {
			parts := splitCoord(aTarget)
			if parts != nil && parts[1] != signerHex {
				return reject(normalize.Restricted.F("nip09_restricted"))
			}
		}
	}

	if ev.Kind == kind.GiftWrap {
		pTags := ev.Tags.GetAll("p")
		if len(pTags) == 0 {
			return reject(normalize.Invalid.F("gift_wrap_invalid_recipient"))
		}
		for _, t := range pTags {
			if v := t.Value(); v == nil || !hex.Valid64(v) {
				return reject(normalize.Invalid.F("gift_wrap_invalid_recipient"))
			}
		}
	}

	if t := ev.Tags.GetFirst("-"); t != nil && t.Len() == 1 {
		if !ctx.Conn.Authenticated() || hex.Enc(ctx.Conn.AuthedPubkey()) != hex.Enc(ev.Pubkey) {
			return reject(normalize.Restricted.F("nip70_protected_event_unauthorized"))
		}
	}
	return nil
}

func splitCoord(s string) []string {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return nil
	}
	return parts
}
