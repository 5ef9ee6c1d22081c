package session

import (
	"sync"
	"time"
)

// GetResult distinguishes a live hit from the two kinds of miss. A store
// never hands out a credential whose TTL has elapsed: the expiry check and
// the deletion are atomic with the read.
type GetResult int

const (
	GetMiss GetResult = iota
	GetHit
	GetExpired
)

// Store holds session credentials keyed by (owner, packageScope). Concurrent
// puts for the same key are last-write-wins; different keys must not contend
// beyond what the backend needs for safety.
type Store interface {
	Get(owner, packageScope string, now time.Time) (Credential, GetResult, error)
	Put(cred Credential) error
	Delete(owner, packageScope string) error
	// SweepExpired removes expired entries and reports how many. Memory
	// hygiene only; expiry correctness never depends on it.
	SweepExpired(now time.Time) (int, error)
}

func storageKey(owner, packageScope string) string {
	return owner + ":" + packageScope
}

// MemoryStore is the default in-process store.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Credential)}
}

func (s *MemoryStore) Get(owner, packageScope string, now time.Time) (Credential, GetResult, error) {
	key := storageKey(owner, packageScope)

	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byID[key]
	if !ok {
		return Credential{}, GetMiss, nil
	}
	if cred.StateAt(now) == StateExpired {
		delete(s.byID, key)
		return Credential{}, GetExpired, nil
	}
	return cred.clone(), GetHit, nil
}

func (s *MemoryStore) Put(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[storageKey(cred.Owner, cred.PackageScope)] = cred.clone()
	return nil
}

func (s *MemoryStore) Delete(owner, packageScope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, storageKey(owner, packageScope))
	return nil
}

func (s *MemoryStore) SweepExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, cred := range s.byID {
		if cred.StateAt(now) == StateExpired {
			delete(s.byID, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored entries, live or not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
