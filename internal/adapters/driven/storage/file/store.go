// Package file stores the sealed credential record in a single file.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/prdeepak/ms365-access/internal/adapters/driven/storage"
	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/core/ports/driven"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// Verify interface compliance.
var (
	_ driven.CredentialStore = (*Store)(nil)
	_ driven.KeyVersioner    = (*Store)(nil)
)

// Store keeps the credential envelope at a fixed path.
// Writes go through a temp file and rename so a crash never leaves a torn record.
type Store struct {
	path  string
	codec *storage.Codec
}

// New creates a store at path, creating its directory with owner-only access.
func New(path string, codec *storage.Codec) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", domain.ErrStorageIO, err)
	}
	return &Store{path: path, codec: codec}, nil
}

// CurrentKeyVersion implements driven.KeyVersioner.
func (s *Store) CurrentKeyVersion() int {
	return s.codec.CurrentKeyVersion()
}

// Save implements driven.CredentialStore.
func (s *Store) Save(_ context.Context, rec *domain.CredentialRecord) error {
	data, err := s.codec.Encode(rec)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", domain.ErrStorageIO, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: chmod temp file: %v", domain.ErrStorageIO, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write temp file: %v", domain.ErrStorageIO, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync temp file: %v", domain.ErrStorageIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", domain.ErrStorageIO, err)
	}

	// Read back before replacing the live record.
	written, err := os.ReadFile(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: read back temp file: %v", domain.ErrStorageIO, err)
	}
	if _, err := s.codec.Decode(written); err != nil {
		return fmt.Errorf("%w: verify written record: %v", domain.ErrStorageIO, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: replace credentials: %v", domain.ErrStorageIO, err)
	}
	committed = true

	return syncDir(dir)
}

// Load implements driven.CredentialStore.
func (s *Store) Load(_ context.Context) (*domain.CredentialRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read credentials: %v", domain.ErrStorageIO, err)
	}
	return s.codec.Decode(data)
}

// Clear implements driven.CredentialStore. The file is zeroed before removal.
func (s *Store) Clear(_ context.Context) error {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: stat credentials: %v", domain.ErrStorageIO, err)
	}

	if err := overwrite(s.path, info.Size()); err != nil {
		return fmt.Errorf("%w: overwrite credentials: %v", domain.ErrStorageIO, err)
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove credentials: %v", domain.ErrStorageIO, err)
	}
	return syncDir(filepath.Dir(s.path))
}

func overwrite(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, fileMode)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteAt(make([]byte, size), 0); err != nil {
		return err
	}
	return f.Sync()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("%w: open data dir: %v", domain.ErrStorageIO, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("%w: sync data dir: %v", domain.ErrStorageIO, err)
	}
	return nil
}
