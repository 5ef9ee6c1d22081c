package keyserver

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"memvault/go-backend/internal/seal"
)

var (
	ErrShareMismatch  = errors.New("combined key shares disagree")
	ErrUnknownServer  = errors.New("share response from unknown server")
	ErrBadServerKey   = errors.New("invalid server key material")
	ErrNoUsableShares = errors.New("no usable key shares")
	errShareSizeWrong = errors.New("derived share has wrong size")
	errVerifyFailed   = errors.New("share verification failed")
)

const shareSize = 32

// ShareResponse is one key server's derived key share for an identity,
// released after the server approved the authorization transaction.
type ShareResponse struct {
	Server  string
	Derived []byte
}

// Scheme is the opaque threshold-IBE primitive boundary. Encapsulation runs
// at encryption time with no server round trip; combination turns released
// server shares back into the base key at decryption time.
type Scheme interface {
	Encapsulate(identity []byte, servers []ServerInfo, baseKey []byte) ([]seal.EncapsulatedShare, error)
	Combine(identity []byte, wraps []seal.EncapsulatedShare, responses []ShareResponse) ([]byte, error)
	Verify(identity []byte, server ServerInfo, derived []byte) error
}

// DevScheme is the development and test scheme. It wraps the full base key
// for every server, so any single honest server suffices and the threshold
// is enforced only by the client's response counting. It provides NO
// threshold security and must never ship in a verifying production profile.
type DevScheme struct{}

func NewDevScheme() DevScheme { return DevScheme{} }

func (DevScheme) Encapsulate(identity []byte, servers []ServerInfo, baseKey []byte) ([]seal.EncapsulatedShare, error) {
	if len(baseKey) != shareSize {
		return nil, fmt.Errorf("%w: base key must be %d bytes", ErrBadServerKey, shareSize)
	}
	shares := make([]seal.EncapsulatedShare, 0, len(servers))
	for _, srv := range servers {
		derived, err := DeriveDevShare(srv.Key, identity)
		if err != nil {
			return nil, err
		}
		wrap := make([]byte, shareSize)
		subtle.XORBytes(wrap, baseKey, derived)
		shares = append(shares, seal.EncapsulatedShare{Server: srv.Name, Payload: wrap})
	}
	return shares, nil
}

// Combine recovers the base key from any verified response and cross-checks
// every response against it. Disagreement between reachable servers is a
// distinct failure: it means the share set is inconsistent, not that servers
// are down.
func (DevScheme) Combine(identity []byte, wraps []seal.EncapsulatedShare, responses []ShareResponse) ([]byte, error) {
	wrapByServer := make(map[string][]byte, len(wraps))
	for _, w := range wraps {
		wrapByServer[w.Server] = w.Payload
	}

	var baseKey []byte
	for _, resp := range responses {
		wrap, ok := wrapByServer[resp.Server]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownServer, resp.Server)
		}
		if len(resp.Derived) != shareSize || len(wrap) != shareSize {
			return nil, errShareSizeWrong
		}
		candidate := make([]byte, shareSize)
		subtle.XORBytes(candidate, wrap, resp.Derived)
		if baseKey == nil {
			baseKey = candidate
			continue
		}
		if !bytes.Equal(baseKey, candidate) {
			return nil, ErrShareMismatch
		}
	}
	if baseKey == nil {
		return nil, ErrNoUsableShares
	}
	return baseKey, nil
}

func (DevScheme) Verify(identity []byte, server ServerInfo, derived []byte) error {
	expected, err := DeriveDevShare(server.Key, identity)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(expected, derived) != 1 {
		return fmt.Errorf("%w: server %s", errVerifyFailed, server.Name)
	}
	return nil
}

// DeriveDevShare computes the share a dev key server releases for an
// identity. Exported so test and development servers derive the same bytes
// the client expects.
func DeriveDevShare(serverKey, identity []byte) ([]byte, error) {
	if len(serverKey) == 0 {
		return nil, ErrBadServerKey
	}
	h, err := blake2b.New256(serverKey)
	if err != nil {
		return nil, err
	}
	h.Write([]byte("memvault/keyserver/share/v1|"))
	h.Write(identity)
	return h.Sum(nil), nil
}
