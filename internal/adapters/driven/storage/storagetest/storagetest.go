// Package storagetest provides fixtures shared by the credential store tests.
package storagetest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prdeepak/ms365-access/internal/adapters/driven/storage"
	"github.com/prdeepak/ms365-access/internal/adapters/driven/storage/sealer"
	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// SecretV1 and SecretV2 are valid test secrets.
var (
	SecretV1 = strings.Repeat("1", 32)
	SecretV2 = strings.Repeat("2", 32)
)

// Codec returns a codec sealing with current and able to open previous.
func Codec(t testing.TB, current sealer.Key, previous ...sealer.Key) *storage.Codec {
	t.Helper()
	s, err := sealer.New(current, previous...)
	require.NoError(t, err)
	return storage.NewCodec(s)
}

// Record returns a fully populated credential record with UTC timestamps.
func Record() *domain.CredentialRecord {
	return &domain.CredentialRecord{
		AccessToken:  "access-token-value",
		RefreshToken: "refresh-token-value",
		ExpiresAt:    time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
		Scopes:       []string{"User.Read", "Mail.ReadWrite", "offline_access"},
		Account:      "user@example.com",
		UpdatedAt:    time.Date(2026, 3, 14, 14, 9, 26, 0, time.UTC),
	}
}
