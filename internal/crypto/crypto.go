package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/dtroode/credsync/internal/model"
)

const (
	SaltSize   = 32     // Salt size in bytes
	KeySize    = 32     // AES-256 key size
	IVSize     = 12     // GCM nonce size
	TagSize    = 16     // GCM authentication tag size
	Iterations = 100000 // PBKDF2 iterations
)

// MasterKey is a passphrase-derived key. Its bytes never leave the package.
type MasterKey struct {
	mu  sync.RWMutex
	key []byte
}

// DeriveMasterKey stretches passphrase with salt. A nil salt is replaced by
// SaltSize random bytes; the salt actually used is returned.
func DeriveMasterKey(passphrase string, salt []byte) (*MasterKey, []byte, error) {
	if passphrase == "" {
		return nil, nil, model.ErrEmptyPassphrase
	}
	if len(salt) == 0 {
		var err error
		salt, err = GenerateRandom(SaltSize)
		if err != nil {
			return nil, nil, err
		}
	}

	key := pbkdf2.Key([]byte(passphrase), salt, Iterations, KeySize, sha256.New)
	return &MasterKey{key: key}, salt, nil
}

// Destroy zeroes the key. Every later call fails with model.ErrLocked.
func (m *MasterKey) Destroy() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ClearBytes(m.key)
	m.key = nil
}

// WrapKey encrypts a content key under the master key.
func (m *MasterKey) WrapKey(contentKey []byte) ([]byte, error) {
	if len(contentKey) != KeySize {
		return nil, fmt.Errorf("content key must be %d bytes, got %d", KeySize, len(contentKey))
	}
	if m == nil {
		return nil, model.ErrLocked
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.key == nil {
		return nil, model.ErrLocked
	}
	return seal(m.key, contentKey)
}

// UnwrapKey reverses WrapKey. An authentication failure means the master
// key differs from the one used to wrap, so it is reported as
// model.ErrInvalidCredentials.
func (m *MasterKey) UnwrapKey(wrapped []byte) ([]byte, error) {
	if m == nil {
		return nil, model.ErrLocked
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.key == nil {
		return nil, model.ErrLocked
	}
	if len(wrapped) < IVSize+TagSize {
		return nil, model.ErrCorruptData
	}
	key, err := open(m.key, wrapped)
	if err != nil {
		return nil, model.ErrInvalidCredentials
	}
	if len(key) != KeySize {
		return nil, model.ErrCorruptData
	}
	return key, nil
}

// GenerateContentKey returns a fresh random AES-256 key.
func GenerateContentKey() ([]byte, error) {
	return GenerateRandom(KeySize)
}

// seal returns ciphertext || iv.
func seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv, err := GenerateRandom(IVSize)
	if err != nil {
		return nil, err
	}

	out := gcm.Seal(nil, iv, plaintext, nil)
	return append(out, iv...), nil
}

// open splits the trailing IV and authenticates the rest.
func open(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	split := len(sealed) - IVSize
	return gcm.Open(nil, sealed[split:], sealed[:split], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// ClearBytes zeroes a byte slice.
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GenerateRandom generates n random bytes.
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
