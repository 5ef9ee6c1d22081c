package seal

import (
	"context"
	"errors"
	"fmt"
)

// The decrypt path classifies every failure into exactly one of these before
// it crosses a component boundary. Raw external errors stay attached as the
// wrapped cause for debugging, never as the signal callers branch on.
var (
	ErrSignatureRequired = errors.New("session signature required")
	ErrSessionExpired    = errors.New("session expired")
	ErrNoSessionFound    = errors.New("no session found")

	ErrAuthorizationDenied            = errors.New("authorization denied by on-chain policy")
	ErrKeyServerUnavailable           = errors.New("key servers unavailable")
	ErrInconsistentKeyServerResponses = errors.New("inconsistent key server responses")
	ErrMalformedCiphertext            = errors.New("malformed ciphertext")

	ErrBackupKeyDecryptionNotImplemented = errors.New("backup key decryption is not implemented")
)

var taxonomy = []error{
	ErrSignatureRequired,
	ErrSessionExpired,
	ErrNoSessionFound,
	ErrAuthorizationDenied,
	ErrKeyServerUnavailable,
	ErrInconsistentKeyServerResponses,
	ErrMalformedCiphertext,
	ErrBackupKeyDecryptionNotImplemented,
}

var kindNames = map[error]string{
	ErrSignatureRequired:                 "signature_required",
	ErrSessionExpired:                    "session_expired",
	ErrNoSessionFound:                    "no_session_found",
	ErrAuthorizationDenied:               "authorization_denied",
	ErrKeyServerUnavailable:              "key_server_unavailable",
	ErrInconsistentKeyServerResponses:    "inconsistent_key_servers",
	ErrMalformedCiphertext:               "malformed_ciphertext",
	ErrBackupKeyDecryptionNotImplemented: "backup_not_implemented",
}

// Kind returns the stable name of the taxonomy entry err belongs to, "ok" for
// nil, or "internal" for an unclassified error.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, sentinel := range taxonomy {
		if errors.Is(err, sentinel) {
			return kindNames[sentinel]
		}
	}
	return "internal"
}

// IsTransient reports whether err is safe to retry with backoff. Session
// errors are recoverable through the re-auth flow, not by retrying, so they
// are not transient here.
func IsTransient(err error) bool {
	return errors.Is(err, ErrKeyServerUnavailable) || errors.Is(err, ErrInconsistentKeyServerResponses)
}

// Classify maps a failure from an external capability onto the taxonomy.
// Already-classified errors pass through unchanged; context cancellation
// passes through so request timeouts keep their meaning; everything else is
// treated as a transient key-server problem with the cause retained.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range taxonomy {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrKeyServerUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrKeyServerUnavailable, err)
}
