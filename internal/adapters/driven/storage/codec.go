// Package storage holds the encrypted credential store backends.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/prdeepak/ms365-access/internal/adapters/driven/storage/sealer"
	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// Codec turns credential records into sealed envelopes and back.
type Codec struct {
	sealer *sealer.Sealer
}

// NewCodec creates a codec around s.
func NewCodec(s *sealer.Sealer) *Codec {
	return &Codec{sealer: s}
}

// CurrentKeyVersion returns the key version Encode seals with.
func (c *Codec) CurrentKeyVersion() int {
	return c.sealer.CurrentKeyVersion()
}

// Encode seals rec. The stored EncryptionVersion is the current key version.
func (c *Codec) Encode(rec *domain.CredentialRecord) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", domain.ErrStorageIO)
	}
	r := rec.Clone()
	r.EncryptionVersion = c.sealer.CurrentKeyVersion()

	plain, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: encode record: %v", domain.ErrStorageIO, err)
	}
	sealed, err := c.sealer.Seal(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
	}
	return sealed, nil
}

// Decode opens an envelope. Failures wrap domain.ErrDecryption.
func (c *Codec) Decode(data []byte) (*domain.CredentialRecord, error) {
	plain, version, err := c.sealer.Open(data)
	if err != nil {
		return nil, err
	}
	var rec domain.CredentialRecord
	if err := json.Unmarshal(plain, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode record", domain.ErrDecryption)
	}
	rec.EncryptionVersion = version
	return &rec, nil
}
