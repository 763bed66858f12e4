package adaptive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// DerivedKeySize is the length of keys returned by DeriveKey.
const DerivedKeySize = 32

// ParseKey decodes a hex encoded master key. Accepted lengths are 16, 24
// and 32 bytes.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("adaptive: decode key: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("%w: master key must be 16, 24 or 32 bytes, got %d", ErrInvalidKeySize, len(key))
	}
}

// DeriveKey derives a purpose bound subkey from master using HKDF-SHA256.
// Different purposes yield independent keys from the same master.
func DeriveKey(master []byte, purpose string) ([]byte, error) {
	if len(master) < 16 {
		return nil, fmt.Errorf("%w: master key shorter than 16 bytes", ErrInvalidKeySize)
	}
	r := hkdf.New(sha256.New, master, nil, []byte(purpose))
	key := make([]byte, DerivedKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("adaptive: derive key: %w", err)
	}
	return key, nil
}

// NewForPurpose derives a subkey for purpose and builds a cipher of the
// requested type on top of it.
func NewForPurpose(master []byte, purpose string, cipherType CipherType) (Cipher, error) {
	key, err := DeriveKey(master, purpose)
	if err != nil {
		return nil, err
	}
	return NewWithType(key, cipherType)
}
