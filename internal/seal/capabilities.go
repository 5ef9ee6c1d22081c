package seal

import (
	"context"
	"time"
)

// CredentialProof is the read-only slice of a signed session credential that
// external key servers need to verify wallet control. It never carries the
// credential's mutable state.
type CredentialProof struct {
	Owner        string
	PackageScope string
	Challenge    []byte
	Signature    []byte
	ExpiresAt    time.Time
}

// ThresholdCrypto is the external threshold-IBE capability. Implementations
// own the cryptographic primitives and the key-server protocol; this layer
// only orchestrates around them.
type ThresholdCrypto interface {
	// Encrypt seals data to an identity so that at least threshold key
	// servers must cooperate to release it. The returned backup key can
	// decrypt without the key-server network and exists for disaster
	// recovery only.
	Encrypt(ctx context.Context, threshold int, packageID string, identity Identity, data []byte) (ciphertext, backupKey []byte, err error)

	// Decrypt releases the plaintext if the key servers accept the
	// authorization transaction and the session proof.
	Decrypt(ctx context.Context, ciphertext []byte, proof CredentialProof, txBytes []byte) ([]byte, error)
}

// Chain builds the transaction bytes that key servers dry-run against the
// on-chain approval predicate.
type Chain interface {
	BuildTransaction(ctx context.Context, call AuthorizationCall) ([]byte, error)
}

// SessionResolver yields the signed credential proof for a (owner,
// packageScope) pair, or one of ErrNoSessionFound, ErrSignatureRequired,
// ErrSessionExpired when the caller must drive the re-auth round trip first.
type SessionResolver interface {
	Resolve(owner, packageScope string) (CredentialProof, error)
}
