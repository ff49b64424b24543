// Package sealer encrypts credential records for storage at rest.
//
// Keys are derived from operator secrets with Argon2id and records are sealed
// with XChaCha20-Poly1305. Each envelope names the key version that sealed it
// so a previous secret can still open old records during rotation.
package sealer

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// EnvelopeFormat is the current envelope layout.
const EnvelopeFormat = 1

// Argon2id parameters. Changing any of them invalidates every stored record.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keyLen       = chacha20poly1305.KeySize
)

var salt = []byte("ms365-access/credential-store/v1")

// Key is an operator secret bound to a version number.
type Key struct {
	Version int
	Secret  string
}

type envelope struct {
	Format     int    `json:"format"`
	KeyVersion int    `json:"key_version"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Sealer seals with the current key and opens with any key in its ring.
type Sealer struct {
	current int
	keys    map[int][]byte
}

// New derives keys for current and any previous secrets.
func New(current Key, previous ...Key) (*Sealer, error) {
	if current.Secret == "" {
		return nil, errors.New("sealer: empty secret")
	}
	if current.Version < 1 {
		return nil, fmt.Errorf("sealer: invalid key version %d", current.Version)
	}

	s := &Sealer{
		current: current.Version,
		keys:    map[int][]byte{current.Version: deriveKey(current.Secret)},
	}
	for _, k := range previous {
		if k.Secret == "" {
			continue
		}
		if _, dup := s.keys[k.Version]; dup {
			return nil, fmt.Errorf("sealer: duplicate key version %d", k.Version)
		}
		s.keys[k.Version] = deriveKey(k.Secret)
	}
	return s, nil
}

func deriveKey(secret string) []byte {
	return argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, keyLen)
}

// CurrentKeyVersion returns the version new envelopes are sealed with.
func (s *Sealer) CurrentKeyVersion() int {
	return s.current
}

// Seal encrypts plaintext into a JSON envelope.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.keys[s.current])
	if err != nil {
		return nil, fmt.Errorf("sealer: init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("sealer: generate nonce: %w", err)
	}

	env := envelope{
		Format:     EnvelopeFormat,
		KeyVersion: s.current,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, additionalData(EnvelopeFormat, s.current)),
	}
	return json.Marshal(env)
}

// Open decrypts an envelope and returns the plaintext and the key version that sealed it.
// Every failure wraps domain.ErrDecryption.
func (s *Sealer) Open(data []byte) ([]byte, int, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, 0, fmt.Errorf("%w: malformed envelope", domain.ErrDecryption)
	}
	if env.Format != EnvelopeFormat {
		return nil, 0, fmt.Errorf("%w: unsupported envelope format %d", domain.ErrDecryption, env.Format)
	}

	key, ok := s.keys[env.KeyVersion]
	if !ok {
		return nil, 0, fmt.Errorf("%w: no key for version %d", domain.ErrDecryption, env.KeyVersion)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: init cipher", domain.ErrDecryption)
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, 0, fmt.Errorf("%w: bad nonce length", domain.ErrDecryption)
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, additionalData(env.Format, env.KeyVersion))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: authentication failed", domain.ErrDecryption)
	}
	return plaintext, env.KeyVersion, nil
}

func additionalData(format, version int) []byte {
	return []byte(fmt.Sprintf("ms365-access/format=%d/key=%d", format, version))
}
