package privacy

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Stored ciphertext comes in two wire formats, both hex encoded and colon
// separated:
//
//	authenticated: iv(12):ciphertext:tag(16)   AES-256-GCM
//	legacy:        iv(16):ciphertext           AES-256-CBC, no auth tag
//
// The legacy format predates authenticated encryption and must keep
// decrypting byte-for-byte; new writes always use the authenticated format.
type format int

const (
	formatAuthenticated format = iota
	formatLegacy
)

const (
	gcmIVSize    = 12
	gcmTagSize   = 16
	legacyIVSize = 16
	cbcBlockSize = 16
)

// DecryptionError reports a ciphertext that cannot be decrypted: a malformed
// envelope, an auth-tag mismatch, or corrupted padding. Callers treat the
// affected field as undecryptable rather than failing a whole listing.
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string {
	return "decrypt: " + e.Reason
}

func decryptErrf(format string, args ...interface{}) error {
	return &DecryptionError{Reason: fmt.Sprintf(format, args...)}
}

// parsed is the closed result of envelope parsing. Format dispatch happens
// here, on colon count and segment lengths, never on byte-content guessing.
type parsed struct {
	format format
	iv     []byte
	data   []byte
	tag    []byte
}

func parseCiphertext(s string) (*parsed, error) {
	segments := strings.Split(s, ":")

	switch len(segments) {
	case 3:
		iv, err := hexSegment("iv", segments[0])
		if err != nil {
			return nil, err
		}
		if len(iv) != gcmIVSize {
			return nil, decryptErrf("authenticated iv must be %d bytes, got %d", gcmIVSize, len(iv))
		}
		data, err := hexSegment("ciphertext", segments[1])
		if err != nil {
			return nil, err
		}
		tag, err := hexSegment("auth tag", segments[2])
		if err != nil {
			return nil, err
		}
		if len(tag) != gcmTagSize {
			return nil, decryptErrf("auth tag must be %d bytes, got %d", gcmTagSize, len(tag))
		}
		return &parsed{format: formatAuthenticated, iv: iv, data: data, tag: tag}, nil

	case 2:
		iv, err := hexSegment("iv", segments[0])
		if err != nil {
			return nil, err
		}
		if len(iv) != legacyIVSize {
			return nil, decryptErrf("legacy iv must be %d bytes, got %d", legacyIVSize, len(iv))
		}
		data, err := hexSegment("ciphertext", segments[1])
		if err != nil {
			return nil, err
		}
		if len(data) == 0 || len(data)%cbcBlockSize != 0 {
			return nil, decryptErrf("legacy ciphertext length %d is not a positive multiple of %d", len(data), cbcBlockSize)
		}
		return &parsed{format: formatLegacy, iv: iv, data: data}, nil

	default:
		return nil, decryptErrf("expected 2 or 3 colon-separated segments, got %d", len(segments))
	}
}

func hexSegment(name, s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, decryptErrf("%s segment is not valid hex", name)
	}
	return b, nil
}
