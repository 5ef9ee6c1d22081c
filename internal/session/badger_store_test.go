package session

import (
	"testing"
	"time"
)

func openTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("open badger store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close badger store: %v", err)
		}
	})
	return s
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	s := openTestBadger(t)
	now := time.Now().UTC().Truncate(time.Second)

	cred := testCredential("0xo", "0xp", now, time.Hour)
	cred.Signature = []byte("sig")
	if err := s.Put(cred); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, result, err := s.Get("0xo", "0xp", now)
	if err != nil || result != GetHit {
		t.Fatalf("get = %v, %v", result, err)
	}
	if got.ID != "sk_test" || string(got.Challenge) != "challenge" || string(got.Signature) != "sig" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if !got.ExpiresAt.Equal(cred.ExpiresAt) {
		t.Fatalf("expiry changed: %v vs %v", got.ExpiresAt, cred.ExpiresAt)
	}
}

func TestBadgerStoreExpiryInBand(t *testing.T) {
	s := openTestBadger(t)
	now := time.Now().UTC()

	if err := s.Put(testCredential("0xo", "0xp", now, 10*time.Minute)); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, result, err := s.Get("0xo", "0xp", now.Add(10*time.Minute))
	if err != nil || result != GetExpired {
		t.Fatalf("expired get = %v, %v", result, err)
	}
	_, result, err = s.Get("0xo", "0xp", now.Add(10*time.Minute))
	if err != nil || result != GetMiss {
		t.Fatalf("get after eviction = %v, %v", result, err)
	}
}

func TestBadgerStoreDelete(t *testing.T) {
	s := openTestBadger(t)
	now := time.Now().UTC()

	if err := s.Put(testCredential("0xo", "0xp", now, time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete("0xo", "0xp"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, result, _ := s.Get("0xo", "0xp", now); result != GetMiss {
		t.Fatalf("get after delete = %v", result)
	}
	if err := s.Delete("0xmissing", "0xp"); err != nil {
		t.Fatalf("delete of absent key: %v", err)
	}
}

func TestBadgerStoreSweepExpired(t *testing.T) {
	s := openTestBadger(t)
	now := time.Now().UTC()

	if err := s.Put(testCredential("0xa", "0xp", now, 10*time.Minute)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(testCredential("0xb", "0xp", now, time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}

	removed, err := s.SweepExpired(now.Add(30 * time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("swept %d, want 1", removed)
	}
	if _, result, _ := s.Get("0xb", "0xp", now.Add(30*time.Minute)); result != GetHit {
		t.Fatalf("live entry swept away: %v", result)
	}
}
