package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"memvault/go-backend/internal/seal"
)

var errUnknownPolicyKind = errors.New("unknown policy kind")

type sessionKeyParams struct {
	Owner        string `json:"owner"`
	PackageScope string `json:"package_scope"`
	Signature    []byte `json:"signature,omitempty"`
}

type encryptParams struct {
	Plaintext []byte      `json:"plaintext"`
	Policy    policyParam `json:"policy"`
}

type decryptParams struct {
	Ciphertext   []byte      `json:"ciphertext"`
	Policy       policyParam `json:"policy"`
	Owner        string      `json:"owner"`
	PackageScope string      `json:"package_scope"`
}

type backupParams struct {
	BackupKey []byte `json:"backup_key"`
}

// policyParam is the wire form of an access policy; Kind selects which of
// the remaining fields matter.
type policyParam struct {
	Kind            string    `json:"kind"`
	UserAddress     string    `json:"user_address,omitempty"`
	OwnerAddress    string    `json:"owner_address,omitempty"`
	AppAddress      string    `json:"app_address,omitempty"`
	AllowlistID     string    `json:"allowlist_id,omitempty"`
	UnlockAt        time.Time `json:"unlock_at,omitempty"`
	RegistryID      string    `json:"registry_id,omitempty"`
	RoleName        string    `json:"role_name,omitempty"`
	SourceContextID string    `json:"source_context_id,omitempty"`
	RequestingAppID string    `json:"requesting_app_id,omitempty"`
}

func (p policyParam) toPolicy() (seal.AccessPolicy, error) {
	switch seal.PolicyKind(p.Kind) {
	case seal.PolicyKindSelf:
		return seal.SelfPolicy{UserAddress: p.UserAddress}, nil
	case seal.PolicyKindAppGrant:
		return seal.AppGrantPolicy{OwnerAddress: p.OwnerAddress, AppAddress: p.AppAddress}, nil
	case seal.PolicyKindAllowlist:
		return seal.AllowlistPolicy{AllowlistID: p.AllowlistID}, nil
	case seal.PolicyKindTimeLock:
		return seal.TimeLockPolicy{UnlockAt: p.UnlockAt}, nil
	case seal.PolicyKindRole:
		return seal.RolePolicy{RegistryID: p.RegistryID, UserAddress: p.UserAddress, RoleName: p.RoleName}, nil
	case seal.PolicyKindCrossContext:
		return seal.CrossContextPolicy{SourceContextID: p.SourceContextID, RequestingAppID: p.RequestingAppID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownPolicyKind, p.Kind)
	}
}

func decodeParams[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, errors.New("missing params")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
