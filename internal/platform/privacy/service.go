package privacy

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Service provides field-level encryption for the application. It wraps a
// FieldCipher and adds a disabled mode for development environments where no
// secret is configured.
type Service struct {
	cipher  *FieldCipher
	enabled bool
}

// NewService creates the encryption service.
//
// If secret is empty, encryption is disabled (development mode) and a
// warning is logged; Encrypt/Decrypt become no-ops that pass values through
// unchanged. With a non-empty secret the key is derived once via the
// KeyProvider; a failed derivation refuses to start the application.
func NewService(secret, salt string, logger zerolog.Logger) (*Service, error) {
	if secret == "" {
		logger.Warn().Msg("field encryption disabled: LEDGER_SECRET is not set")
		return &Service{enabled: false}, nil
	}

	kp, err := NewKeyProvider(secret, salt)
	if err != nil {
		return nil, fmt.Errorf("encryption service: %w", err)
	}

	c, err := NewFieldCipher(kp)
	if err != nil {
		return nil, fmt.Errorf("encryption service: %w", err)
	}

	logger.Info().Msg("field-level encryption enabled")
	return &Service{cipher: c, enabled: true}, nil
}

// NewServiceWithCipher wraps an already-constructed cipher. Used by tests to
// substitute a known key.
func NewServiceWithCipher(c *FieldCipher) *Service {
	return &Service{cipher: c, enabled: true}
}

// EncryptField encrypts a single sensitive field value. Returns the value
// unchanged if encryption is disabled.
func (s *Service) EncryptField(value string) (string, error) {
	if !s.enabled || value == "" {
		return value, nil
	}
	return s.cipher.Encrypt(value)
}

// DecryptField decrypts a single sensitive field value. The second return
// value is true when the stored value used the legacy format and should be
// re-encrypted on its next write. Returns the value unchanged if encryption
// is disabled.
func (s *Service) DecryptField(value string) (string, bool, error) {
	if !s.enabled || value == "" {
		return value, false, nil
	}
	return s.cipher.Decrypt(value)
}

// IsEnabled returns true if encryption is active.
func (s *Service) IsEnabled() bool {
	return s.enabled
}
