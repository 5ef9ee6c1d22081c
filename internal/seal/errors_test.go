package seal

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindNamesEveryTaxonomyEntry(t *testing.T) {
	cases := map[error]string{
		ErrSignatureRequired:                 "signature_required",
		ErrSessionExpired:                    "session_expired",
		ErrNoSessionFound:                    "no_session_found",
		ErrAuthorizationDenied:               "authorization_denied",
		ErrKeyServerUnavailable:              "key_server_unavailable",
		ErrInconsistentKeyServerResponses:    "inconsistent_key_servers",
		ErrMalformedCiphertext:               "malformed_ciphertext",
		ErrBackupKeyDecryptionNotImplemented: "backup_not_implemented",
	}
	for sentinel, name := range cases {
		if got := Kind(sentinel); got != name {
			t.Fatalf("Kind(%v) = %q, want %q", sentinel, got, name)
		}
		wrapped := fmt.Errorf("%w: extra detail", sentinel)
		if got := Kind(wrapped); got != name {
			t.Fatalf("Kind(wrapped %v) = %q, want %q", sentinel, got, name)
		}
	}
	if got := Kind(nil); got != "ok" {
		t.Fatalf("Kind(nil) = %q", got)
	}
	if got := Kind(errors.New("surprise")); got != "internal" {
		t.Fatalf("Kind(unclassified) = %q", got)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(ErrKeyServerUnavailable) || !IsTransient(ErrInconsistentKeyServerResponses) {
		t.Fatal("server-side failures should be transient")
	}
	for _, err := range []error{ErrSessionExpired, ErrSignatureRequired, ErrNoSessionFound, ErrAuthorizationDenied, ErrMalformedCiphertext} {
		if IsTransient(err) {
			t.Fatalf("%v must not be transient", err)
		}
	}
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	wrapped := fmt.Errorf("%w: server 2 said no", ErrAuthorizationDenied)
	if got := Classify(wrapped); got != wrapped {
		t.Fatalf("classified error rewritten: %v", got)
	}
	if got := Classify(context.Canceled); !errors.Is(got, context.Canceled) {
		t.Fatalf("cancellation rewritten: %v", got)
	}
	if got := Classify(nil); got != nil {
		t.Fatalf("Classify(nil) = %v", got)
	}
}

func TestClassifyWrapsUnknownAsUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	got := Classify(cause)
	if !errors.Is(got, ErrKeyServerUnavailable) {
		t.Fatalf("expected ErrKeyServerUnavailable, got %v", got)
	}
	if got := Classify(context.DeadlineExceeded); !errors.Is(got, ErrKeyServerUnavailable) {
		t.Fatalf("deadline should classify as unavailable, got %v", got)
	}
}
