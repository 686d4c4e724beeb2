// AngelaMos | 2026
// tokens_test.go

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasense/sonda-api/internal/config"
	"github.com/aquasense/sonda-api/internal/core"
)

func testTokenConfig(dir string) config.TokenConfig {
	return config.TokenConfig{
		SigningKey:   filepath.Join(dir, "signing.pem"),
		VerifyKey:    filepath.Join(dir, "verify.pem"),
		AccessTTL:    time.Hour,
		RefreshTTL:   7 * 24 * time.Hour,
		Issuer:       "sonda-api",
		Audience:     "sonda-clients",
		GenerateKeys: true,
	}
}

func newTestSigner(t *testing.T) *TokenSigner {
	t.Helper()

	s, err := NewTokenSigner(testTokenConfig(t.TempDir()))
	require.NoError(t, err)
	return s
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := newTestSigner(t)

	issued, err := m.Issue(Identity{
		UserID:       "user-1",
		Role:         "operator",
		BranchID:     "branch-1",
		TokenVersion: 3,
	})
	require.NoError(t, err)

	claims, err := m.Verify(issued.Token)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "operator", claims.Role)
	assert.Equal(t, "branch-1", claims.BranchID)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.Equal(t, issued.TokenID, claims.TokenID)
	assert.WithinDuration(t, issued.ExpiresAt, claims.ExpiresAt, time.Second)
}

func TestVerifyFailureKinds(t *testing.T) {
	m := newTestSigner(t)
	other := newTestSigner(t)

	issued, err := m.Issue(Identity{UserID: "user-1", Role: "operator"})
	require.NoError(t, err)

	foreign, err := other.Issue(Identity{UserID: "user-1", Role: "operator"})
	require.NoError(t, err)

	t.Run("missing", func(t *testing.T) {
		_, err := m.Verify("")
		require.ErrorIs(t, err, core.ErrTokenMissing)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := m.Verify("not-a-token")
		require.ErrorIs(t, err, core.ErrTokenMalformed)
	})

	t.Run("bad signature", func(t *testing.T) {
		_, err := m.Verify(foreign.Token)
		require.ErrorIs(t, err, core.ErrTokenSignature)
	})

	t.Run("expired", func(t *testing.T) {
		expired := newTestSigner(t)
		token, err := expired.Issue(Identity{UserID: "user-1", Role: "operator"})
		require.NoError(t, err)

		expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		_, err = expired.Verify(token.Token)
		require.ErrorIs(t, err, core.ErrTokenExpired)
	})

	t.Run("all kinds are token errors", func(t *testing.T) {
		for _, token := range []string{"", "not-a-token", foreign.Token} {
			_, err := m.Verify(token)
			assert.True(t, core.IsTokenError(err))
		}
		_, err := m.Verify(issued.Token)
		assert.NoError(t, err)
	})
}

func TestRefreshTokenKeepsFamily(t *testing.T) {
	m := newTestSigner(t)

	first, err := m.NewRefresh("")
	require.NoError(t, err)
	assert.NotEmpty(t, first.FamilyID)
	assert.Equal(t, core.HashToken(first.Token), first.Hash)

	rotated, err := m.NewRefresh(first.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, first.FamilyID, rotated.FamilyID)
	assert.NotEqual(t, first.Token, rotated.Token)
}

func TestSignerReusesKeysOnRestart(t *testing.T) {
	dir := t.TempDir()

	first, err := NewTokenSigner(testTokenConfig(dir))
	require.NoError(t, err)

	issued, err := first.Issue(Identity{UserID: "user-1", Role: "operator"})
	require.NoError(t, err)

	second, err := NewTokenSigner(testTokenConfig(dir))
	require.NoError(t, err)

	assert.Equal(t, first.KeyID(), second.KeyID())
	assert.Len(t, first.KeyID(), kidLength)

	_, err = second.Verify(issued.Token)
	assert.NoError(t, err)
}

func TestJWKSPublishesVerifyingKey(t *testing.T) {
	s := newTestSigner(t)

	rec := httptest.NewRecorder()
	s.JWKS()(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/jwk-set+json", rec.Header().Get("Content-Type"))

	var body struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Keys, 1)

	key := body.Keys[0]
	assert.Equal(t, "EC", key["kty"])
	assert.Equal(t, s.KeyID(), key["kid"])
	assert.NotContains(t, key, "d")
}
