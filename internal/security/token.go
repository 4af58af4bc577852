package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// TokenBytes is the amount of entropy in a session token (256 bits).
const TokenBytes = 32

// GenerateToken returns an opaque, URL-safe, unpadded session token.
// It panics if the system random source fails; a weaker token is never issued.
func GenerateToken() string {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("security: read random token: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// HashToken is the digest under which a token is persisted and looked up.
func HashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

// TokenFingerprint is a short, log-safe reference to a token.
func TokenFingerprint(token string) string {
	return base64.RawURLEncoding.EncodeToString(HashToken(token)[:6])
}
