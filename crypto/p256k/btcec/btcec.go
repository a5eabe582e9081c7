// Package btcec implements signer.I with github.com/btcsuite/btcd/btcec/v2
// and its schnorr subpackage: BIP-340 Schnorr signatures over secp256k1,
// the curve Nostr's event ids and AUTH challenges are signed with.
package btcec

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"nostrium.dev/interfaces/signer"
	"nostrium.dev/utils/chk"
	"nostrium.dev/utils/errorf"
)

// Signer is an implementation of signer.I backed by btcec/schnorr.
type Signer struct {
	SecretKey *btcec.PrivateKey
	PublicKey *btcec.PublicKey
	skb, pkb  []byte
}

var _ signer.I = &Signer{}

// Generate creates a new keypair.
func (s *Signer) Generate() (err error) {
	if s.SecretKey, err = btcec.NewPrivateKey(); chk.E(err) {
		return
	}
	s.skb = s.SecretKey.Serialize()
	s.PublicKey = s.SecretKey.PubKey()
	s.pkb = schnorr.SerializePubKey(s.PublicKey)
	return
}

// InitSec loads a 32-byte raw secret key.
func (s *Signer) InitSec(sec []byte) (err error) {
	if len(sec) != 32 {
		return errorf.E("sec key must be 32 bytes, got %d", len(sec))
	}
	s.SecretKey, s.PublicKey = btcec.PrivKeyFromBytes(sec)
	s.skb = s.SecretKey.Serialize()
	s.pkb = schnorr.SerializePubKey(s.PublicKey)
	return
}

// InitPub loads a 32-byte raw x-only public key, for verify-only use.
func (s *Signer) InitPub(pub []byte) (err error) {
	if s.PublicKey, err = schnorr.ParsePubKey(pub); chk.E(err) {
		return
	}
	s.pkb = pub
	return
}

// Sec returns the raw 32-byte secret key.
func (s *Signer) Sec() []byte { return s.skb }

// Pub returns the raw 32-byte x-only public key.
func (s *Signer) Pub() []byte { return s.pkb }

// Sign produces a 64-byte Schnorr signature over msg.
func (s *Signer) Sign(msg []byte) (sig []byte, err error) {
	if s.SecretKey == nil {
		return nil, errorf.E("btcec: signer has no secret key loaded")
	}
	si, err := schnorr.Sign(s.SecretKey, msg)
	if chk.E(err) {
		return nil, err
	}
	return si.Serialize(), nil
}

// Verify checks a 64-byte Schnorr signature over msg against the loaded
// public key.
func (s *Signer) Verify(msg, sig []byte) (valid bool, err error) {
	if s.PublicKey == nil {
		return false, errorf.E("btcec: signer has no public key loaded")
	}
	si, err := schnorr.ParseSignature(sig)
	if chk.D(err) {
		return false, errorf.E("failed to parse signature: %d bytes: %w", len(sig), err)
	}
	return si.Verify(msg, s.PublicKey), nil
}
