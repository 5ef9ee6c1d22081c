package seal

import "time"

// PolicyKind names one variant of the closed AccessPolicy set.
type PolicyKind string

const (
	PolicyKindSelf         PolicyKind = "self"
	PolicyKindAppGrant     PolicyKind = "app_grant"
	PolicyKindAllowlist    PolicyKind = "allowlist"
	PolicyKindTimeLock     PolicyKind = "time_lock"
	PolicyKindRole         PolicyKind = "role"
	PolicyKindCrossContext PolicyKind = "cross_context"
)

// AccessPolicy is the closed set of access rules an encrypted object can be
// bound to. The binding is permanent: changing the policy means re-encrypting.
// The unexported marker keeps the set closed so identity encoding and
// authorization-call building can dispatch exhaustively.
type AccessPolicy interface {
	Kind() PolicyKind
	isAccessPolicy()
}

// SelfPolicy grants access to the owning wallet address only.
type SelfPolicy struct {
	UserAddress string
}

// AppGrantPolicy grants a specific application access to content owned by
// OwnerAddress.
type AppGrantPolicy struct {
	OwnerAddress string
	AppAddress   string
}

// AllowlistPolicy grants access to members of an on-chain allowlist object.
type AllowlistPolicy struct {
	AllowlistID string
}

// TimeLockPolicy denies access until UnlockAt, as judged by the on-chain clock.
type TimeLockPolicy struct {
	UnlockAt time.Time
}

// RolePolicy grants access to addresses holding RoleName in an on-chain role
// registry.
type RolePolicy struct {
	RegistryID  string
	UserAddress string
	RoleName    string
}

// CrossContextPolicy lets an application request content sealed under another
// context; whether the request is honored is decided entirely on-chain.
type CrossContextPolicy struct {
	SourceContextID string
	RequestingAppID string
}

func (SelfPolicy) Kind() PolicyKind         { return PolicyKindSelf }
func (AppGrantPolicy) Kind() PolicyKind     { return PolicyKindAppGrant }
func (AllowlistPolicy) Kind() PolicyKind    { return PolicyKindAllowlist }
func (TimeLockPolicy) Kind() PolicyKind     { return PolicyKindTimeLock }
func (RolePolicy) Kind() PolicyKind         { return PolicyKindRole }
func (CrossContextPolicy) Kind() PolicyKind { return PolicyKindCrossContext }

func (SelfPolicy) isAccessPolicy()         {}
func (AppGrantPolicy) isAccessPolicy()     {}
func (AllowlistPolicy) isAccessPolicy()    {}
func (TimeLockPolicy) isAccessPolicy()     {}
func (RolePolicy) isAccessPolicy()         {}
func (CrossContextPolicy) isAccessPolicy() {}
