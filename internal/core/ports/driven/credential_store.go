package driven

import (
	"context"

	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// CredentialStore persists the single credential record, encrypted at rest.
type CredentialStore interface {
	// Save atomically replaces the stored record.
	// Returns an error wrapping domain.ErrStorageIO on failure; the previous
	// record is left intact in that case.
	Save(ctx context.Context, record *domain.CredentialRecord) error

	// Load returns the stored record with EncryptionVersion set to the key
	// version it was sealed with.
	// Returns domain.ErrCredentialNotFound when nothing is stored and
	// domain.ErrDecryption when the blob cannot be opened.
	Load(ctx context.Context) (*domain.CredentialRecord, error)

	// Clear destroys the stored record. Clearing an empty store succeeds.
	Clear(ctx context.Context) error
}

// KeyVersioner reports the key version new records are sealed with.
// Stores implement it so callers can detect records due for re-encryption.
type KeyVersioner interface {
	CurrentKeyVersion() int
}
