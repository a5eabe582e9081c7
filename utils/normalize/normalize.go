// Package normalize builds the prefix-standardized rejection reasons spec.md
// §6/§7 requires on OK/CLOSED/NOTICE frames: invalid:, restricted:, pow:,
// auth-required:, blocked:, rate-limited:, error:, duplicate:.
package normalize

import "fmt"

// Reason is a rejection-reason builder bound to a fixed prefix.
type Reason string

const (
	Invalid      Reason = "invalid"
	Restricted   Reason = "restricted"
	PoW          Reason = "pow"
	AuthRequired Reason = "auth-required"
	Blocked      Reason = "blocked"
	RateLimited  Reason = "rate-limited"
	Error        Reason = "error"
	Duplicate    Reason = "duplicate"
)

// F renders "prefix: formatted message" as bytes, ready to drop into an OK,
// CLOSED or NOTICE frame.
func (r Reason) F(format string, args ...any) []byte {
	return []byte(string(r) + ": " + fmt.Sprintf(format, args...))
}

// String renders the prefix alone, e.g. for prefix comparisons.
func (r Reason) String() string { return string(r) }
