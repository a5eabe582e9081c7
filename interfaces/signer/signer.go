// Package signer defines the signing/verification collaborator the
// specification treats as external: secp256k1 Schnorr key material and the
// sign/verify primitives over it. Nothing in this module implements the
// curve arithmetic; callers plug in a concrete I (e.g. a libsecp256k1 or
// btcec-backed adapter) at the edges — the event codec and the client
// session manager only ever see this interface.
package signer

// I is the minimal signer/verifier surface the event codec and the client
// session manager depend on.
type I interface {
	// Generate creates a new keypair.
	Generate() error
	// InitSec loads a 32-byte raw secret key.
	InitSec(sec []byte) error
	// InitPub loads a 32-byte raw x-only public key, for verify-only use.
	InitPub(pub []byte) error
	// Sec returns the raw 32-byte secret key.
	Sec() []byte
	// Pub returns the raw 32-byte x-only public key.
	Pub() []byte
	// Sign produces a 64-byte Schnorr signature over msg (already hashed by
	// the caller, per BIP-340).
	Sign(msg []byte) (sig []byte, err error)
	// Verify checks a 64-byte Schnorr signature over msg against pub.
	Verify(msg, sig []byte) (valid bool, err error)
}

// ErrNotImplemented is the error value for an operation a signer
// implementation does not support; no signer in this module returns it.
var ErrNotImplemented = errNotImplemented{}

type errNotImplemented struct{}

func (errNotImplemented) Error() string { return "not implemented: external signer collaborator" }
