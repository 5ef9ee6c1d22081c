package backup

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"memvault/go-backend/internal/seal"
)

func TestMnemonicRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	phrase, err := Mnemonic(key)
	if err != nil {
		t.Fatalf("mnemonic: %v", err)
	}
	if words := strings.Fields(phrase); len(words) != 24 {
		t.Fatalf("expected a 24-word phrase, got %d words", len(words))
	}
	recovered, err := ParseMnemonic(phrase)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(recovered, key) {
		t.Fatal("round trip lost the backup key")
	}
}

func TestMnemonicRejectsBadKeySize(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33} {
		if _, err := Mnemonic(make([]byte, size)); !errors.Is(err, ErrInvalidBackupKey) {
			t.Fatalf("size %d: expected ErrInvalidBackupKey, got %v", size, err)
		}
	}
}

func TestParseMnemonicRejectsGarbage(t *testing.T) {
	if _, err := ParseMnemonic("not a valid phrase"); err == nil {
		t.Fatal("garbage phrase accepted")
	}
	// A valid 12-word phrase encodes 16 bytes of entropy, too short for a
	// backup key.
	if _, err := ParseMnemonic("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"); !errors.Is(err, ErrInvalidBackupKey) {
		t.Fatalf("short entropy: expected ErrInvalidBackupKey, got %v", err)
	}
}

func TestDecryptNotImplemented(t *testing.T) {
	if _, err := Decrypt([]byte("ciphertext"), bytes.Repeat([]byte{1}, 32)); !errors.Is(err, seal.ErrBackupKeyDecryptionNotImplemented) {
		t.Fatalf("expected ErrBackupKeyDecryptionNotImplemented, got %v", err)
	}
}
