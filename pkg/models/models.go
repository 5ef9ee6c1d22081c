// Package models holds the DTOs crossing the daemon's RPC boundary.
package models

import "time"

// SessionChallenge is the reply to a session request: either the message the
// wallet must sign, or notice that a signed session already exists.
type SessionChallenge struct {
	Challenge     []byte    `json:"challenge,omitempty"`
	AlreadySigned bool      `json:"already_signed"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// SessionStatus reports the observable lifecycle state for one (owner,
// packageScope) pair. State is one of absent, unsigned, signed, expired.
type SessionStatus struct {
	Owner        string    `json:"owner"`
	PackageScope string    `json:"package_scope"`
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// EncryptReply carries everything the caller must retain after sealing.
type EncryptReply struct {
	Ciphertext []byte `json:"ciphertext"`
	BackupKey  []byte `json:"backup_key"`
	Identity   string `json:"identity"`
}

// DecryptReply carries a released plaintext.
type DecryptReply struct {
	Plaintext []byte `json:"plaintext"`
}

// BackupMnemonicReply is the escrow phrase for a backup key.
type BackupMnemonicReply struct {
	Mnemonic string `json:"mnemonic"`
}
