package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMint(t *testing.T) {
	secret, err := Mint()
	require.Nil(t, err)

	assert.True(t, strings.HasPrefix(secret, SecretPrefix))
	assert.Len(t, secret, 67)
	assert.True(t, IsValidFormat(secret))

	// Hashing the same secret gives the same result.
	h := Hash(secret)
	assert.Len(t, h, 64)
	assert.Equal(t, h, Hash(secret))

	// Prefix is the first 8 characters.
	assert.Equal(t, secret[:8], Prefix(secret))
}

func TestMintUnique(t *testing.T) {
	a, err := Mint()
	require.Nil(t, err)
	b, err := Mint()
	require.Nil(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashConsistency(t *testing.T) {
	secret := "pg_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	h := Hash(secret)
	assert.Equal(t, h, Hash(secret))
	assert.Regexp(t, "^[0-9a-f]{64}$", h)
	// The hash must not contain the plaintext.
	assert.NotContains(t, h, secret)
}

func TestIsValidFormat(t *testing.T) {
	valid := "pg_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	assert.True(t, IsValidFormat(valid))

	// Wrong prefix.
	assert.False(t, IsValidFormat("xx_"+valid[3:]))
	// Too short.
	assert.False(t, IsValidFormat("pg_0123456789abcdef"))
	// Too long.
	assert.False(t, IsValidFormat(valid+"00"))
	// Uppercase hex is not a token.
	assert.False(t, IsValidFormat("pg_"+strings.ToUpper(valid[3:])))
	// Non-hex characters.
	assert.False(t, IsValidFormat("pg_"+strings.Repeat("zz", 32)))
}
