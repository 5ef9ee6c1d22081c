package seal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"memvault/go-backend/internal/platform/metrics"
)

// Decryptor drives the full release flow: session resolution, identity
// recovery, authorization-call assembly, on-chain transaction bytes, and the
// external decrypt capability. Every failure crossing its boundary is one of
// the taxonomy kinds.
type Decryptor struct {
	sessions SessionResolver
	builder  *TxBuilder
	chain    Chain
	crypto   ThresholdCrypto
	metrics  *metrics.Metrics
}

func NewDecryptor(sessions SessionResolver, builder *TxBuilder, chain Chain, crypto ThresholdCrypto, m *metrics.Metrics) *Decryptor {
	return &Decryptor{
		sessions: sessions,
		builder:  builder,
		chain:    chain,
		crypto:   crypto,
		metrics:  m,
	}
}

// Decrypt releases the plaintext of a sealed object for the given owner and
// package scope. Session errors propagate unchanged so the caller can drive
// the request, sign, and bind round trip; that round trip is part of the
// protocol, not a failure.
func (d *Decryptor) Decrypt(ctx context.Context, ciphertext []byte, policy AccessPolicy, owner, packageScope string) ([]byte, error) {
	proof, err := d.sessions.Resolve(owner, packageScope)
	if err != nil {
		d.metrics.ObserveDecrypt(Kind(err))
		return nil, err
	}

	obj, err := DecodeObject(ciphertext)
	if err != nil {
		d.metrics.ObserveDecrypt(Kind(err))
		return nil, err
	}
	identity := Identity(obj.Identity)
	if err := checkIdentityMatchesPolicy(identity, policy); err != nil {
		d.metrics.ObserveDecrypt(Kind(err))
		return nil, err
	}

	call, err := d.builder.Build(ctx, policy, identity)
	if err != nil {
		d.metrics.ObserveDecrypt("internal")
		return nil, err
	}
	txBytes, err := d.chain.BuildTransaction(ctx, call)
	if err != nil {
		classified := Classify(err)
		d.metrics.ObserveDecrypt(Kind(classified))
		return nil, classified
	}

	plaintext, err := d.crypto.Decrypt(ctx, ciphertext, proof, txBytes)
	if err != nil {
		classified := Classify(err)
		d.metrics.ObserveDecrypt(Kind(classified))
		slog.Default().Debug("decrypt rejected",
			"outcome", Kind(classified),
			"policy_kind", string(policy.Kind()),
			"cause", err.Error(),
		)
		return nil, classified
	}

	d.metrics.ObserveDecrypt("ok")
	return plaintext, nil
}

// A self identity is re-derivable, so a mismatch between the embedded
// identity and the stated policy is caught before any network call. Policies
// with nonce-bearing identities only need a matching kind prefix; the
// on-chain predicate is the authority for everything else.
func checkIdentityMatchesPolicy(identity Identity, policy AccessPolicy) error {
	decoded, err := DecodeIdentity(identity)
	if errors.Is(err, ErrOpaqueIdentity) {
		return nil
	}
	if err != nil {
		return err
	}
	if decoded.Kind() != policy.Kind() {
		return fmt.Errorf("%w: stated policy %s does not match embedded identity", ErrInvalidPolicy, policy.Kind())
	}
	if self, ok := decoded.(SelfPolicy); ok {
		stated, ok := policy.(SelfPolicy)
		if !ok || stated.UserAddress != self.UserAddress {
			return fmt.Errorf("%w: stated owner does not match embedded self identity", ErrInvalidPolicy)
		}
	}
	return nil
}
