package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SecretPrefix marks every secret this service mints. A fixed prefix lets
// credential scanners and future format revisions recognize our tokens
// without consulting the database.
const SecretPrefix = "stp_"

// secretBytes is the entropy of a raw secret: 32 random bytes, rendered as
// 64 lowercase hex characters after the prefix.
const secretBytes = 32

// SecretLength is the full length of a well-formed raw secret.
const SecretLength = len(SecretPrefix) + secretBytes*2

// GenerateSecret mints a new raw secret from the platform CSPRNG. The
// returned string is the only copy that will ever exist; callers hand it
// to the user once and keep only its digest.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return SecretPrefix + hex.EncodeToString(buf), nil
}

// DigestSecret returns the stored form of a raw secret: the lowercase hex
// SHA-256 of the full secret string, prefix included. No salt is involved;
// the secret carries 256 bits of entropy of its own, so the digest is only
// reversible by brute force of the whole secret space.
func DigestSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// LooksLikeSecret is a cheap shape check used by the HTTP layer to reject
// obviously foreign bearer strings before hitting the database.
func LooksLikeSecret(raw string) bool {
	if len(raw) != SecretLength || !strings.HasPrefix(raw, SecretPrefix) {
		return false
	}
	for _, c := range raw[len(SecretPrefix):] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
