package btcec

import "nostrium.dev/interfaces/signer"

// NewSigner builds a fresh, unloaded signer.I. Callers needing a factory to
// hand to the pipeline's EventValidator or a client session pass this
// directly.
func NewSigner() signer.I { return &Signer{} }
