// Package library is the external-collaborator-facing content-addressed
// store described in §1: a process-private, read-mostly map from digest
// to bytes, backed by SQLite for the library root outside a single run.
// The core only ever reads from it; only the host (§5's "shared
// resources") writes into it before a run starts. A digest mismatch on
// read never mutates the store — Get returns ErrDigestMismatch and
// records nothing itself.
package library

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/diblac17-eng/weftend/pkg/canon"
)

// ErrDigestMismatch is returned by Get when the stored bytes no longer
// hash to the digest they were filed under.
var ErrDigestMismatch = errors.New("library: stored blob does not match its digest")

// ErrNotFound is returned by Get when no blob is filed under the digest.
var ErrNotFound = errors.New("library: digest not found")

// Store is a read-verify content-addressed blob store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite-backed library at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("library: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("library: enable WAL: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("library: migrate: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS blobs (
		digest TEXT PRIMARY KEY,
		data   BLOB NOT NULL
	);`)
	return err
}

// Put stores data under its own sha256 digest, idempotently, and returns
// the tagged digest string.
func (s *Store) Put(data []byte) (string, error) {
	digest := canon.SHA256(data)
	_, err := s.db.Exec(`INSERT OR IGNORE INTO blobs (digest, data) VALUES (?, ?)`, digest, data)
	if err != nil {
		return "", fmt.Errorf("library: put: %w", err)
	}
	return digest, nil
}

// Get retrieves the blob filed under digest and re-verifies it hashes to
// that digest before returning it. A mismatch returns ErrDigestMismatch
// without touching the stored row; only the host writes.
func (s *Store) Get(digest string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM blobs WHERE digest = ?`, digest).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("library: get: %w", err)
	}
	if canon.SHA256(data) != digest {
		return nil, ErrDigestMismatch
	}
	return data, nil
}

// Exists reports whether digest is filed, without verifying its content.
func (s *Store) Exists(digest string) (bool, error) {
	var found int
	err := s.db.QueryRow(`SELECT 1 FROM blobs WHERE digest = ?`, digest).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("library: exists: %w", err)
	}
	return true, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
