// Package backup handles the disaster-recovery backup key returned at
// encryption time: rendering it as a mnemonic phrase for offline storage and
// parsing the phrase back. Decrypting with it is deliberately unimplemented
// here and surfaces as an explicit error, never a silent failure.
package backup

import (
	"errors"

	"github.com/tyler-smith/go-bip39"

	"memvault/go-backend/internal/seal"
)

var ErrInvalidBackupKey = errors.New("invalid backup key")

const backupKeySize = 32

// Mnemonic renders a backup key as a BIP-39 phrase.
func Mnemonic(backupKey []byte) (string, error) {
	if len(backupKey) != backupKeySize {
		return "", ErrInvalidBackupKey
	}
	return bip39.NewMnemonic(backupKey)
}

// ParseMnemonic recovers the backup key from a phrase.
func ParseMnemonic(phrase string) ([]byte, error) {
	entropy, err := bip39.EntropyFromMnemonic(phrase)
	if err != nil {
		return nil, err
	}
	if len(entropy) != backupKeySize {
		return nil, ErrInvalidBackupKey
	}
	return entropy, nil
}

// Decrypt would open a sealed object with the backup key alone, bypassing
// the key-server network.
func Decrypt(ciphertext, backupKey []byte) ([]byte, error) {
	return nil, seal.ErrBackupKeyDecryptionNotImplemented
}
