package seal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidPolicy      = errors.New("invalid access policy")
	ErrNonceTooShort      = errors.New("identity nonce too short")
	ErrMalformedIdentity  = errors.New("malformed identity")
	ErrOpaqueIdentity     = errors.New("identity is an opaque handle")
	ErrUnknownPolicyKind  = errors.New("unknown access policy kind")
	errFieldContainsColon = errors.New("policy field contains separator")
)

// MinNonceSize is the minimum decorrelating nonce length for policies whose
// identities must not be guessable across unrelated items.
const MinNonceSize = 5

const defaultNonceSize = 8

const (
	prefixSelf         = "self:"
	prefixAppGrant     = "app:"
	prefixAllowlist    = "acl:"
	prefixTimeLock     = "time:"
	prefixRole         = "role:"
	prefixCrossContext = "xctx:"
)

// Identity is the byte string an encrypted object is permanently bound to. It
// determines which on-chain predicate must approve release of key shares.
type Identity []byte

func (id Identity) String() string { return string(id) }

// NewNonce returns a fresh decorrelating nonce for identity encoding.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, defaultNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}

// EncodeIdentity derives the identity for a policy. Self is a fixed format so
// the same address always yields the same identity and self-access content can
// be re-derived without stored metadata; the nonce is ignored for it. Every
// other kind embeds the nonce so two objects under the same policy never share
// an identity.
func EncodeIdentity(policy AccessPolicy, nonce []byte) (Identity, error) {
	switch p := policy.(type) {
	case SelfPolicy:
		if err := checkFields(p.UserAddress); err != nil {
			return nil, err
		}
		return Identity(prefixSelf + p.UserAddress), nil
	case AppGrantPolicy:
		if err := checkFields(p.OwnerAddress, p.AppAddress); err != nil {
			return nil, err
		}
		return withNonce(prefixAppGrant+p.OwnerAddress+":"+p.AppAddress, nonce)
	case AllowlistPolicy:
		if err := checkFields(p.AllowlistID); err != nil {
			return nil, err
		}
		return withNonce(prefixAllowlist+p.AllowlistID, nonce)
	case TimeLockPolicy:
		if p.UnlockAt.IsZero() {
			return nil, fmt.Errorf("%w: zero unlock time", ErrInvalidPolicy)
		}
		return withNonce(prefixTimeLock+strconv.FormatInt(p.UnlockAt.UnixMilli(), 10), nonce)
	case RolePolicy:
		if err := checkFields(p.RegistryID, p.UserAddress, p.RoleName); err != nil {
			return nil, err
		}
		return withNonce(prefixRole+p.RegistryID+":"+p.UserAddress+":"+p.RoleName, nonce)
	case CrossContextPolicy:
		if err := checkFields(p.SourceContextID, p.RequestingAppID); err != nil {
			return nil, err
		}
		return withNonce(prefixCrossContext+p.SourceContextID+":"+p.RequestingAppID, nonce)
	default:
		return nil, ErrUnknownPolicyKind
	}
}

// DecodeIdentity parses an identity back into its policy. Only formats that
// are self-describing on the wire decode: Self (needed for idempotent identity
// lookup) and TimeLock (the unlock timestamp must stay readable for
// client-side pre-checks). All other kinds are opaque handles correlated
// out-of-band and return ErrOpaqueIdentity.
func DecodeIdentity(identity Identity) (AccessPolicy, error) {
	s := string(identity)
	switch {
	case strings.HasPrefix(s, prefixSelf):
		addr := strings.TrimPrefix(s, prefixSelf)
		if addr == "" {
			return nil, ErrMalformedIdentity
		}
		return SelfPolicy{UserAddress: addr}, nil
	case strings.HasPrefix(s, prefixTimeLock):
		rest := strings.TrimPrefix(s, prefixTimeLock)
		millisText, _, ok := strings.Cut(rest, ":")
		if !ok || millisText == "" {
			return nil, ErrMalformedIdentity
		}
		millis, err := strconv.ParseInt(millisText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedIdentity, err)
		}
		return TimeLockPolicy{UnlockAt: time.UnixMilli(millis).UTC()}, nil
	case strings.HasPrefix(s, prefixAppGrant),
		strings.HasPrefix(s, prefixAllowlist),
		strings.HasPrefix(s, prefixRole),
		strings.HasPrefix(s, prefixCrossContext):
		return nil, ErrOpaqueIdentity
	default:
		return nil, ErrMalformedIdentity
	}
}

func withNonce(body string, nonce []byte) (Identity, error) {
	if len(nonce) < MinNonceSize {
		return nil, ErrNonceTooShort
	}
	return Identity(body + ":" + hex.EncodeToString(nonce)), nil
}

func checkFields(fields ...string) error {
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("%w: empty field", ErrInvalidPolicy)
		}
		if strings.Contains(f, ":") {
			return fmt.Errorf("%w: %q", errFieldContainsColon, f)
		}
	}
	return nil
}
