package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// FieldCipher provides field-level encryption for patient-identifying
// values. New writes produce the authenticated format; both stored formats
// decrypt (see format.go). Stateless and safe for concurrent use.
type FieldCipher struct {
	aead  cipher.AEAD
	block cipher.Block
}

// NewFieldCipher builds a cipher around the provider's derived key.
func NewFieldCipher(kp *KeyProvider) (*FieldCipher, error) {
	block, err := aes.NewCipher(kp.Key())
	if err != nil {
		return nil, fmt.Errorf("field cipher: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("field cipher: create GCM: %w", err)
	}

	return &FieldCipher{aead: aead, block: block}, nil
}

// Encrypt encrypts plaintext into the authenticated iv:ciphertext:tag
// envelope.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, gcmIVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("field cipher: generate iv: %w", err)
	}

	// Seal appends ciphertext||tag; the envelope stores them as separate
	// hex segments.
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	data := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(data) + ":" + hex.EncodeToString(tag), nil
}

// Decrypt decrypts either stored envelope format. The second return value is
// true when the value used the legacy format and should be re-encrypted on
// the next write. Tampered or malformed input fails closed with a
// *DecryptionError; corrupted plaintext is never returned.
func (c *FieldCipher) Decrypt(ciphertext string) (string, bool, error) {
	p, err := parseCiphertext(ciphertext)
	if err != nil {
		return "", false, err
	}

	switch p.format {
	case formatAuthenticated:
		sealed := append(append([]byte{}, p.data...), p.tag...)
		plaintext, err := c.aead.Open(nil, p.iv, sealed, nil)
		if err != nil {
			return "", false, decryptErrf("authentication failed")
		}
		return string(plaintext), false, nil

	case formatLegacy:
		plaintext, err := c.decryptLegacy(p.iv, p.data)
		if err != nil {
			return "", false, err
		}
		return plaintext, true, nil

	default:
		return "", false, decryptErrf("unknown ciphertext format")
	}
}

// decryptLegacy handles the pre-GCM CBC format. No integrity check exists
// for these values beyond the PKCS#7 padding; they are decrypt-only.
func (c *FieldCipher) decryptLegacy(iv, data []byte) (string, error) {
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, data)

	unpadded, err := stripPKCS7(out)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func stripPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, decryptErrf("legacy plaintext is empty")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > cbcBlockSize || pad > len(data) {
		return nil, decryptErrf("invalid legacy padding")
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, decryptErrf("invalid legacy padding")
		}
	}
	return data[:len(data)-pad], nil
}
