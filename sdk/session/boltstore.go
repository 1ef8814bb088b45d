package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	bolt "go.etcd.io/bbolt"
)

var (
	boltBucket = []byte("crewdesk")
	boltRecord = []byte("session")
)

// recordVersion is bumped when the persisted record layout changes.
const recordVersion = 0

// BoltStore is a durable Store backed by a bbolt database file. The pair is
// kept as a single JSON record nested under a "state" field:
//
//	{"state":{"accessToken":"...","refreshToken":"..."},"version":0}
//
// so the on-disk shape matches the dashboard's persisted session record. A
// record that is absent, truncated, or not valid JSON reads as no session.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if needed) the database at path and ensures
// the session bucket exists. The caller owns the returned store and should
// Close it when done.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session: failed to create store directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("session: failed to open credential store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, errBucket := tx.CreateBucketIfNotExists(boltBucket)
		return errBucket
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: failed to initialize credential store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Read returns the stored pair, or an empty pair when the record is missing
// or malformed. It never fails.
func (s *BoltStore) Read() CredentialPair {
	var pair CredentialPair
	_ = s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket == nil {
			return nil
		}
		raw := bucket.Get(boltRecord)
		if len(raw) == 0 || !gjson.ValidBytes(raw) {
			return nil
		}
		state := gjson.GetBytes(raw, "state")
		pair.AccessToken = state.Get("accessToken").String()
		pair.RefreshToken = state.Get("refreshToken").String()
		return nil
	})
	if pair.Empty() {
		return CredentialPair{}
	}
	return pair
}

// Write replaces both tokens in a single transaction.
func (s *BoltStore) Write(accessToken, refreshToken string) error {
	record := []byte("{}")
	var err error
	if record, err = sjson.SetBytes(record, "state.accessToken", accessToken); err != nil {
		return fmt.Errorf("session: failed to encode credential record: %w", err)
	}
	if record, err = sjson.SetBytes(record, "state.refreshToken", refreshToken); err != nil {
		return fmt.Errorf("session: failed to encode credential record: %w", err)
	}
	if record, err = sjson.SetBytes(record, "version", recordVersion); err != nil {
		return fmt.Errorf("session: failed to encode credential record: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(boltRecord, record)
	})
	if err != nil {
		return fmt.Errorf("session: failed to persist credentials: %w", err)
	}
	return nil
}

// Clear deletes the record. Clearing an already empty store is a no-op.
func (s *BoltStore) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(boltRecord)
	})
	if err != nil {
		return fmt.Errorf("session: failed to clear credentials: %w", err)
	}
	return nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
