package privacy

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const keySize = 32

// KeyProvider holds the single symmetric key used for field encryption.
// The key is derived once from the configured secret and salt; the provider
// is immutable after construction and safe for concurrent use.
type KeyProvider struct {
	key [keySize]byte
}

// NewKeyProvider derives a 32-byte AES-256 key from secret and salt using
// scrypt. Derivation is deliberately slow; call this once at startup and
// inject the provider everywhere the key is needed.
func NewKeyProvider(secret, salt string) (*KeyProvider, error) {
	if secret == "" {
		return nil, fmt.Errorf("key provider: secret must not be empty")
	}
	if salt == "" {
		return nil, fmt.Errorf("key provider: salt must not be empty")
	}

	derived, err := scrypt.Key([]byte(secret), []byte(salt), 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("key provider: derive key: %w", err)
	}

	p := &KeyProvider{}
	copy(p.key[:], derived)
	return p, nil
}

// Key returns a copy of the derived key.
func (p *KeyProvider) Key() []byte {
	out := make([]byte, keySize)
	copy(out, p.key[:])
	return out
}

// Equal reports whether two providers derived the same key. Used by tests
// and by the genkey command to verify round trips; comparison is constant
// time.
func (p *KeyProvider) Equal(other *KeyProvider) bool {
	if other == nil {
		return false
	}
	return subtle.ConstantTimeCompare(p.key[:], other.key[:]) == 1
}
