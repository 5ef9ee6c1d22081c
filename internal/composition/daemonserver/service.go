package daemonserver

import (
	"context"

	"memvault/go-backend/internal/backup"
	"memvault/go-backend/internal/seal"
	"memvault/go-backend/internal/session"
	"memvault/go-backend/pkg/models"
)

// service implements rpc.Service on top of the composed components.
type service struct {
	sessions  *session.Manager
	encryptor *seal.Encryptor
	decryptor *seal.Decryptor
}

func (s *service) RequestSession(_ context.Context, owner, packageScope string) (models.SessionChallenge, error) {
	outcome, err := s.sessions.Request(owner, packageScope)
	if err != nil {
		return models.SessionChallenge{}, err
	}
	return models.SessionChallenge{
		Challenge:     outcome.Challenge,
		AlreadySigned: outcome.AlreadySigned,
		ExpiresAt:     outcome.ExpiresAt,
	}, nil
}

func (s *service) BindSessionSignature(_ context.Context, owner, packageScope string, signature []byte) error {
	return s.sessions.BindSignature(owner, packageScope, signature)
}

func (s *service) SessionStatus(_ context.Context, owner, packageScope string) (models.SessionStatus, error) {
	state, cred, err := s.sessions.Status(owner, packageScope)
	if err != nil {
		return models.SessionStatus{}, err
	}
	return models.SessionStatus{
		Owner:        owner,
		PackageScope: packageScope,
		State:        state,
		CreatedAt:    cred.CreatedAt,
		ExpiresAt:    cred.ExpiresAt,
	}, nil
}

func (s *service) Encrypt(ctx context.Context, plaintext []byte, policy seal.AccessPolicy) (models.EncryptReply, error) {
	result, err := s.encryptor.Encrypt(ctx, plaintext, policy)
	if err != nil {
		return models.EncryptReply{}, err
	}
	return models.EncryptReply{
		Ciphertext: result.Ciphertext,
		BackupKey:  result.BackupKey,
		Identity:   result.Identity.String(),
	}, nil
}

func (s *service) Decrypt(ctx context.Context, ciphertext []byte, policy seal.AccessPolicy, owner, packageScope string) (models.DecryptReply, error) {
	plaintext, err := s.decryptor.Decrypt(ctx, ciphertext, policy, owner, packageScope)
	if err != nil {
		return models.DecryptReply{}, err
	}
	return models.DecryptReply{Plaintext: plaintext}, nil
}

func (s *service) BackupMnemonic(_ context.Context, backupKey []byte) (models.BackupMnemonicReply, error) {
	mnemonic, err := backup.Mnemonic(backupKey)
	if err != nil {
		return models.BackupMnemonicReply{}, err
	}
	return models.BackupMnemonicReply{Mnemonic: mnemonic}, nil
}
