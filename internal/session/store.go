// Package session keeps the signed-in user's credential.
//
// The session lives in a single BoltDB file so that it survives between CLI
// invocations. A Manager is the capability handed to the API client: it
// supplies the bearer token while signed in and nothing after sign-out.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "github.com/boltdb/bolt"

	"posdash/pkg/models"
)

const (
	bucketName = "session"
	currentKey = "current"
)

var (
	// ErrNoSession is returned when nothing is stored.
	ErrNoSession = errors.New("no stored session")

	// ErrNotSignedIn is returned when an operation needs a signed-in user.
	ErrNotSignedIn = errors.New("not signed in")
)

// Session is one sign-in.
type Session struct {
	JWT        string      `json:"jwt"`
	User       models.User `json:"user"`
	SignedInAt time.Time   `json:"signed_in_at"`
}

// Store persists the current session in a BoltDB file.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the session database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session file %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored session or ErrNoSession.
func (s *Store) Load() (*Session, error) {
	var sess Session

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(currentKey))
		if v == nil {
			return ErrNoSession
		}
		return json.Unmarshal(v, &sess)
	})
	if err != nil {
		return nil, err
	}

	return &sess, nil
}

// Save replaces the stored session.
func (s *Store) Save(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(currentKey), data)
	})
}

// Clear removes the stored session. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(currentKey))
	})
}
