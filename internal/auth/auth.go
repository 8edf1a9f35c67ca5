package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

func HashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

// TokenMatches compares hashes so timing does not leak the token length.
// An empty want never matches.
func TokenMatches(want, got string) bool {
	if want == "" {
		return false
	}
	a, b := HashToken(want), HashToken(got)
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
