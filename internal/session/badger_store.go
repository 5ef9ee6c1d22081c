package session

import (
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

const badgerKeyPrefix = "sess/"

// badgerTTLGrace keeps an entry visible to the in-band expiry check for a
// while after its logical expiry, so Get can report GetExpired instead of a
// plain miss. Correctness never depends on Badger's own TTL eviction.
const badgerTTLGrace = time.Hour

type storedCredential struct {
	ID           string    `cbor:"1,keyasint"`
	Owner        string    `cbor:"2,keyasint"`
	PackageScope string    `cbor:"3,keyasint"`
	Challenge    []byte    `cbor:"4,keyasint"`
	Signature    []byte    `cbor:"5,keyasint"`
	CreatedAt    time.Time `cbor:"6,keyasint"`
	ExpiresAt    time.Time `cbor:"7,keyasint"`
}

// BadgerStore is the durable Store backend: one Badger entry per (owner,
// packageScope), value CBOR-encoded, entry TTL set past the credential's
// logical expiry.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the store under dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) Get(owner, packageScope string, now time.Time) (Credential, GetResult, error) {
	key := []byte(badgerKeyPrefix + storageKey(owner, packageScope))
	var cred Credential
	result := GetMiss

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var stored storedCredential
		if err := item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}
		cred = fromStored(stored)
		if cred.StateAt(now) == StateExpired {
			result = GetExpired
			cred = Credential{}
			return txn.Delete(key)
		}
		result = GetHit
		return nil
	})
	if err != nil {
		return Credential{}, GetMiss, err
	}
	return cred, result, nil
}

func (s *BadgerStore) Put(cred Credential) error {
	key := []byte(badgerKeyPrefix + storageKey(cred.Owner, cred.PackageScope))
	val, err := cbor.Marshal(toStored(cred))
	if err != nil {
		return err
	}
	ttl := time.Until(cred.ExpiresAt) + badgerTTLGrace
	if ttl <= 0 {
		ttl = badgerTTLGrace
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, val).WithTTL(ttl))
	})
}

func (s *BadgerStore) Delete(owner, packageScope string) error {
	key := []byte(badgerKeyPrefix + storageKey(owner, packageScope))
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (s *BadgerStore) SweepExpired(now time.Time) (int, error) {
	var expired [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var stored storedCredential
			if err := item.Value(func(val []byte) error {
				return cbor.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}
			if fromStored(stored).StateAt(now) == StateExpired {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range expired {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func toStored(cred Credential) storedCredential {
	return storedCredential{
		ID:           cred.ID,
		Owner:        cred.Owner,
		PackageScope: cred.PackageScope,
		Challenge:    cred.Challenge,
		Signature:    cred.Signature,
		CreatedAt:    cred.CreatedAt,
		ExpiresAt:    cred.ExpiresAt,
	}
}

func fromStored(stored storedCredential) Credential {
	return Credential{
		ID:           stored.ID,
		Owner:        stored.Owner,
		PackageScope: stored.PackageScope,
		Challenge:    stored.Challenge,
		Signature:    stored.Signature,
		CreatedAt:    stored.CreatedAt,
		ExpiresAt:    stored.ExpiresAt,
	}
}
