// Package relayinfo is the NIP-11 relay information document: the
// external collaborator exposed to HTTP clients sending
// Accept: application/nostr+json, and consulted by the AUTH relay-URL
// check.
package relayinfo

// Limitation mirrors relay_info.limitation configuration (§6): the knobs
// the RelayPolicyValidator pipeline stage enforces.
type Limitation struct {
	MaxMessageLength     int  `json:"max_message_length,omitempty"`
	MaxSubscriptions     int  `json:"max_subscriptions,omitempty"`
	MaxLimit             int  `json:"max_limit,omitempty"`
	MaxSubidLength       int  `json:"max_subid_length,omitempty"`
	MaxEventTags         int  `json:"max_event_tags,omitempty"`
	MaxContentLength     int  `json:"max_content_length,omitempty"`
	MinPowDifficulty     int  `json:"min_pow_difficulty,omitempty"`
	RestrictedWrites     bool `json:"restricted_writes,omitempty"`
	CreatedAtLowerLimit  int64 `json:"created_at_lower_limit,omitempty"`
	CreatedAtUpperLimit  int64 `json:"created_at_upper_limit,omitempty"`
	DefaultLimit         int  `json:"default_limit,omitempty"`
	AuthRequired         bool `json:"auth_required,omitempty"`
}

// Fees documents the relay's fee schedule, carried through for NIP-11
// completeness though this module never charges anything.
type Fees struct {
	Admission   []map[string]any `json:"admission,omitempty"`
	Subscription []map[string]any `json:"subscription,omitempty"`
	Publication []map[string]any `json:"publication,omitempty"`
}

// T is the NIP-11 document.
type T struct {
	URL           string     `json:"url,omitempty"`
	Name          string     `json:"name,omitempty"`
	Description   string     `json:"description,omitempty"`
	Pubkey        string     `json:"pubkey,omitempty"`
	Contact       string     `json:"contact,omitempty"`
	SupportedNIPs []int      `json:"supported_nips,omitempty"`
	Software      string     `json:"software,omitempty"`
	Version       string     `json:"version,omitempty"`
	Limitation    Limitation `json:"limitation,omitempty"`
	Fees          *Fees      `json:"fees,omitempty"`
}

// DefaultLimitation returns the defaults named in §6.
func DefaultLimitation() Limitation {
	return Limitation{
		MaxMessageLength: 8_000_000,
		MaxSubscriptions: 100,
		MaxSubidLength:   100,
		MaxEventTags:     100,
		MaxContentLength: 8_192,
		MinPowDifficulty: 0,
	}
}
