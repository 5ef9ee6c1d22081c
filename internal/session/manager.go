package session

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mr-tron/base58/base58"

	"memvault/go-backend/internal/platform/metrics"
	"memvault/go-backend/internal/seal"
)

var (
	ErrInvalidAddress      = errors.New("invalid owner address")
	ErrInvalidPackageScope = errors.New("invalid package scope")
	ErrEmptySignature      = errors.New("empty signature")
)

const (
	// challengeDomain separates session challenges from anything else a
	// wallet might be asked to sign.
	challengeDomain = "memvault/session/v1"

	DefaultTTL = 30 * time.Minute
	MinTTL     = 10 * time.Minute
	MaxTTL     = 60 * time.Minute

	challengeNonceSize = 16
)

// Config tunes a Manager. The zero value selects the defaults.
type Config struct {
	// TTL bounds a credential's lifetime; clamped to [MinTTL, MaxTTL].
	// Expiry is TTL-only: resolving a credential never extends it, so a
	// leaked credential's blast radius is bounded by its remaining
	// lifetime.
	TTL time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Manager owns the session-credential state machine. It is the single point
// deciding whether a decrypt may proceed without re-authentication.
type Manager struct {
	store   Store
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
}

// RequestOutcome is what a session request yields: either a challenge the
// wallet must sign, or notice that a signed credential already exists.
type RequestOutcome struct {
	Challenge     []byte
	AlreadySigned bool
	ExpiresAt     time.Time
}

func NewManager(store Store, cfg Config, m *metrics.Metrics) *Manager {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if ttl < MinTTL {
		ttl = MinTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, ttl: ttl, now: now, metrics: m}
}

// Request returns the pending challenge for the pair, reports an existing
// signed credential, or issues a fresh unsigned credential.
func (m *Manager) Request(owner, packageScope string) (RequestOutcome, error) {
	if err := checkKey(owner, packageScope); err != nil {
		return RequestOutcome{}, err
	}
	now := m.now()

	cred, result, err := m.store.Get(owner, packageScope, now)
	if err != nil {
		return RequestOutcome{}, err
	}
	if result == GetHit {
		if cred.StateAt(now) == StateSigned {
			return RequestOutcome{AlreadySigned: true, ExpiresAt: cred.ExpiresAt}, nil
		}
		return RequestOutcome{Challenge: cred.Challenge, ExpiresAt: cred.ExpiresAt}, nil
	}

	fresh, err := m.newCredential(owner, packageScope, now)
	if err != nil {
		return RequestOutcome{}, err
	}
	if err := m.store.Put(fresh); err != nil {
		return RequestOutcome{}, err
	}
	m.metrics.SessionEvent("requested")
	slog.Default().Info("session challenge issued",
		"owner", owner,
		"package_scope", packageScope,
		"expires_at", fresh.ExpiresAt,
	)
	return RequestOutcome{Challenge: fresh.Challenge, ExpiresAt: fresh.ExpiresAt}, nil
}

// BindSignature attaches a wallet signature to the pending credential. A
// repeat of the current signature is a no-op; a different signature
// overwrites, supporting re-auth without a fresh challenge. Binding is a
// single atomic store write, so a caller-side timeout can never leave a
// half-bound credential.
func (m *Manager) BindSignature(owner, packageScope string, signature []byte) error {
	if err := checkKey(owner, packageScope); err != nil {
		return err
	}
	if len(signature) == 0 {
		return ErrEmptySignature
	}
	now := m.now()

	cred, result, err := m.store.Get(owner, packageScope, now)
	if err != nil {
		return err
	}
	switch result {
	case GetMiss:
		return seal.ErrNoSessionFound
	case GetExpired:
		return seal.ErrSessionExpired
	}
	if bytes.Equal(cred.Signature, signature) {
		return nil
	}
	cred.Signature = append([]byte(nil), signature...)
	if err := m.store.Put(cred); err != nil {
		return err
	}
	m.metrics.SessionEvent("signed")
	return nil
}

// Resolve returns the signed credential proof needed to decrypt. On
// ErrSignatureRequired or ErrNoSessionFound the caller must request a
// challenge, obtain the wallet signature, bind it, and retry; that round trip
// is a protocol requirement, not an implementation choice.
func (m *Manager) Resolve(owner, packageScope string) (seal.CredentialProof, error) {
	cred, err := m.resolveCredential(owner, packageScope)
	if err != nil {
		return seal.CredentialProof{}, err
	}
	return cred.Proof(), nil
}

// ResolveCredential is Resolve for callers that need the full read-only copy.
func (m *Manager) ResolveCredential(owner, packageScope string) (Credential, error) {
	return m.resolveCredential(owner, packageScope)
}

func (m *Manager) resolveCredential(owner, packageScope string) (Credential, error) {
	if err := checkKey(owner, packageScope); err != nil {
		return Credential{}, err
	}
	now := m.now()

	cred, result, err := m.store.Get(owner, packageScope, now)
	if err != nil {
		return Credential{}, err
	}
	switch result {
	case GetMiss:
		return Credential{}, seal.ErrNoSessionFound
	case GetExpired:
		m.metrics.SessionEvent("expired")
		return Credential{}, seal.ErrSessionExpired
	}
	if cred.StateAt(now) != StateSigned {
		return Credential{}, seal.ErrSignatureRequired
	}
	m.metrics.SessionEvent("resolved")
	return cred, nil
}

// Invalidate drops the credential for the pair regardless of state.
func (m *Manager) Invalidate(owner, packageScope string) error {
	if err := checkKey(owner, packageScope); err != nil {
		return err
	}
	if err := m.store.Delete(owner, packageScope); err != nil {
		return err
	}
	m.metrics.SessionEvent("invalidated")
	return nil
}

// Status reports the observable state of the pair without mutating it,
// except that an expired entry is evicted as on any read.
func (m *Manager) Status(owner, packageScope string) (string, Credential, error) {
	if err := checkKey(owner, packageScope); err != nil {
		return "", Credential{}, err
	}
	now := m.now()
	cred, result, err := m.store.Get(owner, packageScope, now)
	if err != nil {
		return "", Credential{}, err
	}
	switch result {
	case GetMiss:
		return "absent", Credential{}, nil
	case GetExpired:
		return StateExpired.String(), Credential{}, nil
	}
	return cred.StateAt(now).String(), cred, nil
}

// SweepExpired evicts expired entries. Optional; reads already expire lazily.
func (m *Manager) SweepExpired() (int, error) {
	return m.store.SweepExpired(m.now())
}

// TTL reports the configured credential lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

func (m *Manager) newCredential(owner, packageScope string, now time.Time) (Credential, error) {
	nonce := make([]byte, challengeNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Credential{}, err
	}
	id := make([]byte, 12)
	if _, err := rand.Read(id); err != nil {
		return Credential{}, err
	}
	expiresAt := now.Add(m.ttl)
	return Credential{
		ID:           "sk_" + base58.Encode(id),
		Owner:        owner,
		PackageScope: packageScope,
		Challenge:    buildChallenge(owner, packageScope, nonce, now, expiresAt),
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
	}, nil
}

// buildChallenge renders the signable message. The domain prefix prevents a
// session signature from being replayed as any other kind of signed payload.
func buildChallenge(owner, packageScope string, nonce []byte, issuedAt, expiresAt time.Time) []byte {
	msg := fmt.Sprintf("%s\nowner:%s\npackage:%s\nnonce:%s\nissued:%s\nexpires:%s",
		challengeDomain,
		owner,
		packageScope,
		base58.Encode(nonce),
		issuedAt.UTC().Format(time.RFC3339),
		expiresAt.UTC().Format(time.RFC3339),
	)
	return []byte(msg)
}

func checkKey(owner, packageScope string) error {
	if strings.TrimSpace(owner) == "" {
		return ErrInvalidAddress
	}
	if strings.TrimSpace(packageScope) == "" {
		return ErrInvalidPackageScope
	}
	return nil
}
