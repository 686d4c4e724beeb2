// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("pond-secret-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.NotContains(t, hash, "pond-secret-1")

	ok, err := VerifyPassword("pond-secret-1", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("pond-secret-2", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordSalted(t *testing.T) {
	first, err := HashPassword("same")
	require.NoError(t, err)
	second, err := HashPassword("same")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyLegacyBcryptHashIsRehashed(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("pw1"), 10)
	require.NoError(t, err)

	ok, newHash, err := VerifyPasswordWithRehash("pw1", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotEmpty(t, newHash)
	assert.True(t, strings.HasPrefix(newHash, "$argon2id$"))

	ok, newHash, err = VerifyPasswordWithRehash("wrong", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, newHash)
}

func TestVerifyPasswordTimingSafeWithoutHash(t *testing.T) {
	ok, newHash, err := VerifyPasswordTimingSafe("anything", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, newHash)

	empty := ""
	ok, _, err = VerifyPasswordTimingSafe("anything", &empty)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordRejectsGarbage(t *testing.T) {
	_, err := VerifyPassword("x", "not-a-hash")
	assert.Error(t, err)
}

func TestHashTokenStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.Len(t, HashToken("abc"), 64)
}

func TestVerifyUpgradesOtherArgonCost(t *testing.T) {
	cheap := phcHash{
		params: argonParams{memory: 8 * 1024, time: 1, threads: 1, keyLen: 32},
		salt:   []byte("0123456789abcdef"),
	}
	cheap.key = derive("pw1", cheap.salt, cheap.params)

	ok, upgraded, err := VerifyPasswordWithRehash("pw1", cheap.String())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotEmpty(t, upgraded)

	parsed, err := parsePHC(upgraded)
	require.NoError(t, err)
	assert.Equal(t, argonCost, parsed.params)

	ok, upgraded, err = VerifyPasswordWithRehash("pw1", upgraded)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, upgraded)
}
