// Package sqlite stores the sealed credential record in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/prdeepak/ms365-access/internal/adapters/driven/storage"
	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/core/ports/driven"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	envelope   BLOB    NOT NULL,
	updated_at TEXT    NOT NULL
)`

// Verify interface compliance.
var (
	_ driven.CredentialStore = (*Store)(nil)
	_ driven.KeyVersioner    = (*Store)(nil)
)

// Store keeps the credential envelope in a single-row table.
type Store struct {
	db    *sql.DB
	codec *storage.Codec
}

// New opens (or creates) the database at path.
func New(ctx context.Context, path string, codec *storage.Codec) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", domain.ErrStorageIO, err)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", domain.ErrStorageIO, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", domain.ErrStorageIO, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: chmod database: %v", domain.ErrStorageIO, err)
	}

	return &Store{db: db, codec: codec}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "secure_delete(ON)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(FULL)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CurrentKeyVersion implements driven.KeyVersioner.
func (s *Store) CurrentKeyVersion() int {
	return s.codec.CurrentKeyVersion()
}

// Save implements driven.CredentialStore.
func (s *Store) Save(ctx context.Context, rec *domain.CredentialRecord) error {
	data, err := s.codec.Encode(rec)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrStorageIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credentials (id, envelope, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			envelope = excluded.envelope,
			updated_at = excluded.updated_at`,
		data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert credentials: %v", domain.ErrStorageIO, err)
	}

	// Read back inside the transaction so a bad write never commits.
	var written []byte
	if err := tx.QueryRowContext(ctx, `SELECT envelope FROM credentials WHERE id = 1`).Scan(&written); err != nil {
		return fmt.Errorf("%w: read back credentials: %v", domain.ErrStorageIO, err)
	}
	if _, err := s.codec.Decode(written); err != nil {
		return fmt.Errorf("%w: verify written record: %v", domain.ErrStorageIO, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrStorageIO, err)
	}
	return nil
}

// Load implements driven.CredentialStore.
func (s *Store) Load(ctx context.Context) (*domain.CredentialRecord, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT envelope FROM credentials WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read credentials: %v", domain.ErrStorageIO, err)
	}
	return s.codec.Decode(data)
}

// Clear implements driven.CredentialStore. secure_delete zeroes the freed
// pages and the checkpoint flushes them out of the WAL.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = 1`); err != nil {
		return fmt.Errorf("%w: delete credentials: %v", domain.ErrStorageIO, err)
	}
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("%w: checkpoint: %v", domain.ErrStorageIO, err)
	}
	return nil
}
