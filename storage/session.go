package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
	"golang.org/x/crypto/nacl/secretbox"

	"flaremail/models"
)

// SessionStorage persists session snapshots in the application database,
// keyed by browser session id. Snapshots carry live tokens, so they are
// sealed with a key derived from the configured secret rather than stored
// in the clear. A snapshot that fails to open or decode is reported as an
// error; callers treat that the same as an expired session.
type SessionStorage struct {
	db  *bbolt.DB
	key [32]byte
}

// NewSessionStorage creates snapshot storage sealing with the given secret.
func NewSessionStorage(db *bbolt.DB, secret string) *SessionStorage {
	return &SessionStorage{
		db:  db,
		key: sha256.Sum256([]byte(secret)),
	}
}

// Save seals and stores a snapshot under the given key.
func (s *SessionStorage) Save(key string, snap models.SessionSnapshot) error {
	plain, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %v", err)
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &s.key)

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Put([]byte(key), sealed)
	})
}

// Load returns the snapshot stored under the key. found is false when no
// snapshot exists; a non-nil error means the stored bytes are unusable.
func (s *SessionStorage) Load(key string) (*models.SessionSnapshot, bool, error) {
	var sealed []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket([]byte(sessionBucket)).Get([]byte(key)); v != nil {
			sealed = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if sealed == nil {
		return nil, false, nil
	}
	if len(sealed) < 24 {
		return nil, true, errors.New("corrupt session snapshot")
	}

	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		return nil, true, errors.New("corrupt session snapshot")
	}

	var snap models.SessionSnapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return nil, true, fmt.Errorf("failed to decode snapshot: %v", err)
	}
	return &snap, true, nil
}

// Delete removes the snapshot stored under the key. Deleting a missing
// snapshot is not an error.
func (s *SessionStorage) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Delete([]byte(key))
	})
}
