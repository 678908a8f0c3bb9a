package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// GenerateCodeVerifier generates a high-entropy PKCE code verifier
// (RFC 7636). Returns a 43-character URL-safe string.
func GenerateCodeVerifier() (string, error) {
	return GenerateSecureToken()
}

// ChallengeS256 derives the S256 code challenge from a verifier:
// base64url(SHA-256(verifier)) without padding.
func ChallengeS256(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// VerifyPKCE checks a verifier against a previously issued S256 challenge.
func VerifyPKCE(verifier, challenge string) bool {
	computed := ChallengeS256(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
