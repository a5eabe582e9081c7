// Package kind classifies Nostr event kinds per NIP-01/09/42/59: the
// replaceable/parameterized-replaceable/ephemeral ranges the store's
// collapse and retention rules key off, and the handful of special kinds
// the session pipeline and store treat by name.
package kind

// T is a Nostr event kind number.
type T int64

// Named kinds the pipeline and store branch on explicitly.
const (
	Profile              T = 0
	Text                 T = 1
	RelayList            T = 3
	DM                    T = 4
	Deletion             T = 5
	ChannelCreate        T = 40
	ChannelMetadata      T = 41
	GiftWrap             T = 1059
	ClientAuthentication T = 22242
)

// IsReplaceable reports whether the kind collapses on (pubkey, kind): 0, 3,
// and the 10000-19999 range.
func (k T) IsReplaceable() bool {
	if k == Profile || k == RelayList {
		return true
	}
	return k >= 10000 && k <= 19999
}

// IsParameterizedReplaceable reports whether the kind collapses on
// (pubkey, kind, d-tag): the 30000-39999 range.
func (k T) IsParameterizedReplaceable() bool {
	return k >= 30000 && k <= 39999
}

// IsEphemeral reports whether the kind is in the ephemeral 20000-29999
// range; the store keeps such events out of queries and counts.
func (k T) IsEphemeral() bool {
	return k >= 20000 && k <= 29999
}

// IsRegular is the complement of the three special ranges above: ordinary
// immutable events that accumulate forever, save for deletion/expiration.
func (k T) IsRegular() bool {
	return !k.IsReplaceable() && !k.IsParameterizedReplaceable() && !k.IsEphemeral()
}
