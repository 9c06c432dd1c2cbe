package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// TokenPrefix marks drivehub MCP bearer tokens. Anything else presented as a
// Bearer credential is treated as an OIDC access token.
const TokenPrefix = "dh_"

// MintToken generates a new MCP bearer token. The raw token is returned once
// to the caller; only its digest is stored.
func MintToken() (token string, digest string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = TokenPrefix + base64.RawURLEncoding.EncodeToString(b)
	return token, DigestToken(token), nil
}

// DigestToken returns the hex SHA-256 digest stored for a token.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IsMCPToken reports whether a bearer credential is a drivehub MCP token.
func IsMCPToken(raw string) bool {
	return strings.HasPrefix(raw, TokenPrefix)
}
