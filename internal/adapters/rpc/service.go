package rpc

import (
	"context"

	"memvault/go-backend/internal/seal"
	"memvault/go-backend/pkg/models"
)

// Service is the daemon surface the RPC adapter exposes. The adapter does
// thin request validation only; all policy and lifecycle decisions live
// behind this interface.
type Service interface {
	RequestSession(ctx context.Context, owner, packageScope string) (models.SessionChallenge, error)
	BindSessionSignature(ctx context.Context, owner, packageScope string, signature []byte) error
	SessionStatus(ctx context.Context, owner, packageScope string) (models.SessionStatus, error)
	Encrypt(ctx context.Context, plaintext []byte, policy seal.AccessPolicy) (models.EncryptReply, error)
	Decrypt(ctx context.Context, ciphertext []byte, policy seal.AccessPolicy, owner, packageScope string) (models.DecryptReply, error)
	BackupMnemonic(ctx context.Context, backupKey []byte) (models.BackupMnemonicReply, error)
}
