package seal

import (
	"context"
	"errors"
	"log/slog"

	"memvault/go-backend/internal/platform/metrics"
)

var ErrEmptyPlaintext = errors.New("empty plaintext")

// EncryptResult carries everything the caller must retain: the ciphertext,
// the identity the object is now bound to, and the disaster-recovery backup
// key. Losing the backup key is acceptable; storing it next to the ciphertext
// is not.
type EncryptResult struct {
	Ciphertext []byte
	BackupKey  []byte
	Identity   Identity
}

// Encryptor binds content to an access policy and delegates sealing to the
// external threshold capability. Stateless; safe for concurrent use.
type Encryptor struct {
	crypto    ThresholdCrypto
	threshold int
	packageID string
	nonce     func() ([]byte, error)
	metrics   *metrics.Metrics
}

func NewEncryptor(crypto ThresholdCrypto, threshold int, packageID string, m *metrics.Metrics) *Encryptor {
	return &Encryptor{
		crypto:    crypto,
		threshold: threshold,
		packageID: packageID,
		nonce:     NewNonce,
		metrics:   m,
	}
}

// Encrypt derives the identity for the policy and seals the plaintext under
// it. Failures are not retried here: the caller decides based on whether the
// classified kind is transient.
func (e *Encryptor) Encrypt(ctx context.Context, plaintext []byte, policy AccessPolicy) (EncryptResult, error) {
	if len(plaintext) == 0 {
		return EncryptResult{}, ErrEmptyPlaintext
	}
	nonce, err := e.nonce()
	if err != nil {
		return EncryptResult{}, err
	}
	identity, err := EncodeIdentity(policy, nonce)
	if err != nil {
		return EncryptResult{}, err
	}

	ciphertext, backupKey, err := e.crypto.Encrypt(ctx, e.threshold, e.packageID, identity, plaintext)
	if err != nil {
		classified := Classify(err)
		e.metrics.ObserveEncrypt(Kind(classified))
		return EncryptResult{}, classified
	}

	e.metrics.ObserveEncrypt("ok")
	slog.Default().Info("content sealed",
		"policy_kind", string(policy.Kind()),
		"threshold", e.threshold,
		"ciphertext_bytes", len(ciphertext),
	)
	return EncryptResult{
		Ciphertext: ciphertext,
		BackupKey:  backupKey,
		Identity:   identity,
	}, nil
}
