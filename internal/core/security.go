// AngelaMos | 2026
// security.go

package core

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func CompareTokenHash(token, hash string) bool {
	tokenHash := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(tokenHash), []byte(hash)) == 1
}

// CompareSecret compares a caller-supplied shared secret with the
// configured one without leaking length or prefix timing. An empty
// expected secret never matches.
func CompareSecret(provided, expected string) bool {
	if expected == "" {
		return false
	}
	return CompareTokenHash(provided, HashToken(expected))
}

// DigestHex returns the hex sha256 of raw bytes, used to derive stable
// identifiers for payloads that carry none.
func DigestHex(raw []byte) string {
	hash := sha256.Sum256(raw)
	return hex.EncodeToString(hash[:])
}
