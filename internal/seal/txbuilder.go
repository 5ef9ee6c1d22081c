package seal

import (
	"context"
	"errors"
	"fmt"
)

// ClockObjectRef is the well-known on-chain clock singleton consulted by
// time-lock approval. It is never user-supplied.
const ClockObjectRef ObjectRef = "0x6"

var ErrNoGrantObject = errors.New("no grant object registered for owner/app pair")

// ObjectRef identifies an on-chain object passed by reference in an
// authorization call.
type ObjectRef string

// ArgKind tags one ordered argument of an authorization call.
type ArgKind uint8

const (
	ArgIdentity ArgKind = iota + 1
	ArgObject
	ArgAddress
	ArgString
)

// CallArg is one argument of an authorization call. Exactly one field besides
// Kind is meaningful, selected by Kind.
type CallArg struct {
	Kind   ArgKind
	Bytes  []byte
	Object ObjectRef
	Value  string
}

// AuthorizationCall is the on-chain call descriptor an authorization
// transaction must contain for a given identity. It is built fresh per
// decrypt attempt and never cached: arguments may include freshly-read
// on-chain object references.
type AuthorizationCall struct {
	Target string
	Args   []CallArg
}

// GrantResolver maps an (owner, app) pair to the on-chain grant object that
// seal_approve_app inspects. Implementations may read chain state.
type GrantResolver interface {
	AppGrantObject(ctx context.Context, ownerAddress, appAddress string) (ObjectRef, error)
}

// StaticGrantResolver serves grant objects from a fixed table keyed
// "owner:app". Used when grants are configured rather than discovered.
type StaticGrantResolver map[string]ObjectRef

func (r StaticGrantResolver) AppGrantObject(_ context.Context, ownerAddress, appAddress string) (ObjectRef, error) {
	ref, ok := r[ownerAddress+":"+appAddress]
	if !ok {
		return "", fmt.Errorf("%w: %s:%s", ErrNoGrantObject, ownerAddress, appAddress)
	}
	return ref, nil
}

// TxBuilder assembles the authorization call for each policy variant. It
// never evaluates authorization itself: the on-chain predicate is the sole
// authority, so a defect here yields a call that is rejected on-chain, never
// one that bypasses the check.
type TxBuilder struct {
	clock  ObjectRef
	grants GrantResolver
}

func NewTxBuilder(grants GrantResolver) *TxBuilder {
	return &TxBuilder{clock: ClockObjectRef, grants: grants}
}

// Build produces the call descriptor for one policy/identity pair.
func (b *TxBuilder) Build(ctx context.Context, policy AccessPolicy, identity Identity) (AuthorizationCall, error) {
	switch p := policy.(type) {
	case SelfPolicy:
		return buildSelf(identity), nil
	case AppGrantPolicy:
		return b.buildAppGrant(ctx, p, identity)
	case AllowlistPolicy:
		return buildAllowlist(p, identity), nil
	case TimeLockPolicy:
		return b.buildTimeLock(identity), nil
	case RolePolicy:
		return buildRole(p, identity), nil
	case CrossContextPolicy:
		return buildCrossContext(p, identity), nil
	default:
		return AuthorizationCall{}, ErrUnknownPolicyKind
	}
}

func buildSelf(identity Identity) AuthorizationCall {
	return AuthorizationCall{
		Target: "seal_approve_self",
		Args:   []CallArg{identityArg(identity)},
	}
}

func (b *TxBuilder) buildAppGrant(ctx context.Context, p AppGrantPolicy, identity Identity) (AuthorizationCall, error) {
	if b.grants == nil {
		return AuthorizationCall{}, ErrNoGrantObject
	}
	grantRef, err := b.grants.AppGrantObject(ctx, p.OwnerAddress, p.AppAddress)
	if err != nil {
		return AuthorizationCall{}, err
	}
	return AuthorizationCall{
		Target: "seal_approve_app",
		Args:   []CallArg{objectArg(grantRef), identityArg(identity)},
	}, nil
}

func buildAllowlist(p AllowlistPolicy, identity Identity) AuthorizationCall {
	return AuthorizationCall{
		Target: "seal_approve",
		Args:   []CallArg{identityArg(identity), objectArg(ObjectRef(p.AllowlistID))},
	}
}

func (b *TxBuilder) buildTimeLock(identity Identity) AuthorizationCall {
	return AuthorizationCall{
		Target: "seal_approve_timelock",
		Args:   []CallArg{objectArg(b.clock), identityArg(identity)},
	}
}

func buildRole(p RolePolicy, identity Identity) AuthorizationCall {
	return AuthorizationCall{
		Target: "seal_approve_role",
		Args: []CallArg{
			objectArg(ObjectRef(p.RegistryID)),
			addressArg(p.UserAddress),
			stringArg(p.RoleName),
			identityArg(identity),
		},
	}
}

// Cross-context requests reuse the generic approve entry point; whether the
// requesting app may read across contexts is decided by the predicate alone.
func buildCrossContext(p CrossContextPolicy, identity Identity) AuthorizationCall {
	return AuthorizationCall{
		Target: "seal_approve",
		Args:   []CallArg{identityArg(identity), stringArg(p.RequestingAppID)},
	}
}

func identityArg(identity Identity) CallArg {
	return CallArg{Kind: ArgIdentity, Bytes: append([]byte(nil), identity...)}
}

func objectArg(ref ObjectRef) CallArg { return CallArg{Kind: ArgObject, Object: ref} }
func addressArg(addr string) CallArg  { return CallArg{Kind: ArgAddress, Value: addr} }
func stringArg(v string) CallArg      { return CallArg{Kind: ArgString, Value: v} }
