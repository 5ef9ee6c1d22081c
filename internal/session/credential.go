package session

import (
	"time"

	"memvault/go-backend/internal/seal"
)

// State is the lifecycle position of a credential. Observed states for any
// key only ever move forward: Unsigned, then Signed, then Expired.
type State int

const (
	StateUnsigned State = iota
	StateSigned
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateUnsigned:
		return "unsigned"
	case StateSigned:
		return "signed"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Credential is the session key for one (owner, packageScope) pair: the
// signable challenge, the wallet signature once bound, and the TTL window.
// Values are owned by the store; callers only ever see copies.
type Credential struct {
	ID           string
	Owner        string
	PackageScope string
	Challenge    []byte
	Signature    []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// StateAt reports the credential's lifecycle state at the given instant.
func (c Credential) StateAt(now time.Time) State {
	if !now.Before(c.ExpiresAt) {
		return StateExpired
	}
	if len(c.Signature) > 0 {
		return StateSigned
	}
	return StateUnsigned
}

// Proof extracts the read-only slice of a signed credential that external
// key servers verify.
func (c Credential) Proof() seal.CredentialProof {
	return seal.CredentialProof{
		Owner:        c.Owner,
		PackageScope: c.PackageScope,
		Challenge:    append([]byte(nil), c.Challenge...),
		Signature:    append([]byte(nil), c.Signature...),
		ExpiresAt:    c.ExpiresAt,
	}
}

func (c Credential) clone() Credential {
	out := c
	out.Challenge = append([]byte(nil), c.Challenge...)
	out.Signature = append([]byte(nil), c.Signature...)
	return out
}
