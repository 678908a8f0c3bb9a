package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SignData computes an HMAC-SHA256 signature over data and returns it
// base64 URL-encoded without padding.
func SignData(data string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignedData verifies an HMAC-SHA256 signature produced by SignData.
// The comparison is constant-time.
func ValidateSignedData(data, signature string, key []byte) bool {
	expected, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return hmac.Equal(mac.Sum(nil), expected)
}

// DeriveKey derives a 32-byte purpose-specific key from a master secret
// using HKDF-SHA256. Distinct purpose labels yield independent keys, so a
// single configured secret can back multiple signers without key reuse.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	r := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key for %q: %w", purpose, err)
	}
	return key, nil
}
