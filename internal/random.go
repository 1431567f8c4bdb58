package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

const (
	opaqueValueSize = 32

	tokenIDPrefix   = "token_"
	sessionIDPrefix = "session_"
	apiKeyPrefix    = "pa_"
)

// NewUserID returns a fresh user identifier.
func NewUserID() string {
	return uuid.NewString()
}

// NewTokenID returns a token identifier of the form "token_" plus 16 hex
// characters. The shortened form keeps ids readable in logs while leaving
// collision odds negligible for a single estate.
func NewTokenID() string {
	return tokenIDPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

// NewSessionID returns a session identifier of the form "session_" plus the
// 32 hex characters of a v4 UUID.
func NewSessionID() string {
	return sessionIDPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NewOpaqueValue returns a 32-byte URL-safe random credential.
func NewOpaqueValue() (string, error) {
	var raw [opaqueValueSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewAPIKeyValue returns an API key: the "pa_" prefix plus a 32-byte
// URL-safe random payload. The prefix lets support staff recognize leaked
// keys in pastes without resolving them.
func NewAPIKeyValue() (string, error) {
	v, err := NewOpaqueValue()
	if err != nil {
		return "", err
	}
	return apiKeyPrefix + v, nil
}

// HashValue returns the lowercase hex SHA-256 of a token value. Blacklist
// entries store this hash so revocation never requires retaining the raw
// secret.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
