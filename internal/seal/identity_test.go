package seal

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEncodeIdentitySelfDeterministic(t *testing.T) {
	policy := SelfPolicy{UserAddress: "0xabc"}
	first, err := EncodeIdentity(policy, nil)
	if err != nil {
		t.Fatalf("encode self: %v", err)
	}
	second, err := EncodeIdentity(policy, []byte("ignored-nonce"))
	if err != nil {
		t.Fatalf("encode self with nonce: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("self identity not deterministic: %q vs %q", first, second)
	}
	if first.String() != "self:0xabc" {
		t.Fatalf("unexpected self identity: %q", first)
	}
}

func TestEncodeIdentityNonSelfUnique(t *testing.T) {
	policy := AllowlistPolicy{AllowlistID: "0xlist"}
	nonceA, err := NewNonce()
	if err != nil {
		t.Fatalf("new nonce: %v", err)
	}
	nonceB, err := NewNonce()
	if err != nil {
		t.Fatalf("new nonce: %v", err)
	}
	idA, err := EncodeIdentity(policy, nonceA)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	idB, err := EncodeIdentity(policy, nonceB)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Equal(idA, idB) {
		t.Fatalf("same policy produced identical identities: %q", idA)
	}
	if !strings.HasPrefix(idA.String(), "acl:0xlist:") {
		t.Fatalf("unexpected allowlist identity: %q", idA)
	}
}

func TestEncodeIdentityNonceTooShort(t *testing.T) {
	_, err := EncodeIdentity(AllowlistPolicy{AllowlistID: "0xlist"}, []byte{1, 2, 3, 4})
	if !errors.Is(err, ErrNonceTooShort) {
		t.Fatalf("expected ErrNonceTooShort, got %v", err)
	}
	if _, err := EncodeIdentity(AllowlistPolicy{AllowlistID: "0xlist"}, []byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("minimum-size nonce rejected: %v", err)
	}
}

func TestEncodeIdentityRejectsBadFields(t *testing.T) {
	nonce := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	cases := []AccessPolicy{
		SelfPolicy{UserAddress: ""},
		SelfPolicy{UserAddress: "0xa:b"},
		AppGrantPolicy{OwnerAddress: "0xo", AppAddress: " "},
		RolePolicy{RegistryID: "0xr", UserAddress: "0xu", RoleName: "read:er"},
		CrossContextPolicy{SourceContextID: "", RequestingAppID: "0xapp"},
	}
	for _, policy := range cases {
		if _, err := EncodeIdentity(policy, nonce); err == nil {
			t.Fatalf("expected rejection for %#v", policy)
		}
	}
	if _, err := EncodeIdentity(TimeLockPolicy{}, nonce); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy for zero unlock time, got %v", err)
	}
}

func TestEncodeIdentityAllVariants(t *testing.T) {
	nonce := []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee}
	unlock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		policy AccessPolicy
		prefix string
	}{
		{SelfPolicy{UserAddress: "0xu"}, "self:"},
		{AppGrantPolicy{OwnerAddress: "0xo", AppAddress: "0xa"}, "app:0xo:0xa:"},
		{AllowlistPolicy{AllowlistID: "0xl"}, "acl:0xl:"},
		{TimeLockPolicy{UnlockAt: unlock}, "time:"},
		{RolePolicy{RegistryID: "0xr", UserAddress: "0xu", RoleName: "editor"}, "role:0xr:0xu:editor:"},
		{CrossContextPolicy{SourceContextID: "0xs", RequestingAppID: "0xq"}, "xctx:0xs:0xq:"},
	}
	for _, tc := range cases {
		id, err := EncodeIdentity(tc.policy, nonce)
		if err != nil {
			t.Fatalf("encode %s: %v", tc.policy.Kind(), err)
		}
		if !strings.HasPrefix(id.String(), tc.prefix) {
			t.Fatalf("%s identity %q lacks prefix %q", tc.policy.Kind(), id, tc.prefix)
		}
	}
}

func TestDecodeIdentityRoundTrips(t *testing.T) {
	selfID, err := EncodeIdentity(SelfPolicy{UserAddress: "0xabc"}, nil)
	if err != nil {
		t.Fatalf("encode self: %v", err)
	}
	decoded, err := DecodeIdentity(selfID)
	if err != nil {
		t.Fatalf("decode self: %v", err)
	}
	self, ok := decoded.(SelfPolicy)
	if !ok || self.UserAddress != "0xabc" {
		t.Fatalf("unexpected decoded policy: %#v", decoded)
	}

	unlock := time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC)
	nonce := []byte{1, 2, 3, 4, 5}
	timeID, err := EncodeIdentity(TimeLockPolicy{UnlockAt: unlock}, nonce)
	if err != nil {
		t.Fatalf("encode timelock: %v", err)
	}
	decoded, err = DecodeIdentity(timeID)
	if err != nil {
		t.Fatalf("decode timelock: %v", err)
	}
	tl, ok := decoded.(TimeLockPolicy)
	if !ok || !tl.UnlockAt.Equal(unlock) {
		t.Fatalf("unexpected decoded timelock: %#v", decoded)
	}
}

func TestDecodeIdentityOpaqueKinds(t *testing.T) {
	nonce := []byte{9, 8, 7, 6, 5}
	policies := []AccessPolicy{
		AppGrantPolicy{OwnerAddress: "0xo", AppAddress: "0xa"},
		AllowlistPolicy{AllowlistID: "0xl"},
		RolePolicy{RegistryID: "0xr", UserAddress: "0xu", RoleName: "reader"},
		CrossContextPolicy{SourceContextID: "0xs", RequestingAppID: "0xq"},
	}
	for _, policy := range policies {
		id, err := EncodeIdentity(policy, nonce)
		if err != nil {
			t.Fatalf("encode %s: %v", policy.Kind(), err)
		}
		if _, err := DecodeIdentity(id); !errors.Is(err, ErrOpaqueIdentity) {
			t.Fatalf("expected ErrOpaqueIdentity for %s, got %v", policy.Kind(), err)
		}
	}
}

func TestDecodeIdentityMalformed(t *testing.T) {
	for _, raw := range []string{"", "self:", "time:notanumber:0102", "bogus:thing", "time:"} {
		if _, err := DecodeIdentity(Identity(raw)); !errors.Is(err, ErrMalformedIdentity) {
			t.Fatalf("expected ErrMalformedIdentity for %q, got %v", raw, err)
		}
	}
}

func TestNewNonceLength(t *testing.T) {
	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("new nonce: %v", err)
	}
	if len(nonce) < MinNonceSize {
		t.Fatalf("default nonce too short: %d", len(nonce))
	}
}
