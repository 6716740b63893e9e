// Package token implements the API token codec. Tokens are formatted as
// pg_<64 hex chars>; only their SHA-256 hash is ever persisted, and the
// 8-character prefix is kept for identification in listings.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"regexp"

	"github.com/postgate/postgate/internal/common/apperrors"
)

// SecretPrefix is the fixed prefix of every token secret.
const SecretPrefix = "pg_"

// SecretLength is the total length of a token secret: 3 prefix + 64 hex.
const SecretLength = len(SecretPrefix) + 64

// PrefixLength is the number of leading characters retained for display.
const PrefixLength = 8

// ErrMintFailed is returned when the system RNG is unavailable. Fatal.
var ErrMintFailed apperrors.Error = apperrors.New("unable to generate token").
	SetStatusCode(http.StatusInternalServerError)

var secretFormat = regexp.MustCompile(`^pg_[0-9a-f]{64}$`)

// Mint draws 32 bytes from the cryptographic RNG and returns the full token
// secret. The secret is returned exactly once at creation; callers must not
// persist it.
func Mint() (string, apperrors.Error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", ErrMintFailed.Err(err)
	}
	return SecretPrefix + hex.EncodeToString(raw[:]), nil
}

// Hash returns the lowercase hex SHA-256 of the full secret. Deterministic
// and side-effect free; the hash is the database lookup key.
func Hash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Prefix returns the first 8 characters of the secret (pg_ + 5 hex), used to
// identify tokens in listings without exposing them.
func Prefix(secret string) string {
	if len(secret) < PrefixLength {
		return secret
	}
	return secret[:PrefixLength]
}

// IsValidFormat reports whether s has the exact shape of a token secret.
func IsValidFormat(s string) bool {
	return secretFormat.MatchString(s)
}
