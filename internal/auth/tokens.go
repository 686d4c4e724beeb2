// AngelaMos | 2026
// tokens.go

package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/aquasense/sonda-api/internal/config"
	"github.com/aquasense/sonda-api/internal/core"
	"github.com/aquasense/sonda-api/internal/middleware"
)

const (
	claimRole    = "role"
	claimBranch  = "branch"
	claimVersion = "tv"
	claimUse     = "use"
	useAccess    = "access"

	clockSkew = 30 * time.Second
	kidLength = 16
)

// TokenSigner issues and verifies ES256 access tokens and mints opaque
// refresh tokens. The verifying half is published as a JWKS.
type TokenSigner struct {
	signing   jwk.Key
	verifying jwk.Key
	published jwk.Set
	cfg       config.TokenConfig
	now       func() time.Time
}

func NewTokenSigner(cfg config.TokenConfig) (*TokenSigner, error) {
	if cfg.GenerateKeys {
		if err := ensureKeyPair(cfg.SigningKey, cfg.VerifyKey); err != nil {
			return nil, err
		}
	}

	signing, err := loadSigningKey(cfg.SigningKey)
	if err != nil {
		return nil, err
	}

	verifying, err := signing.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("verifying key: %w", err)
	}
	if err := verifying.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("verifying key use: %w", err)
	}

	published := jwk.NewSet()
	if err := published.AddKey(verifying); err != nil {
		return nil, fmt.Errorf("publish verifying key: %w", err)
	}

	return &TokenSigner{
		signing:   signing,
		verifying: verifying,
		published: published,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

// loadSigningKey reads a PEM EC key and stamps it with ES256 and a kid
// derived from its thumbprint, so every replica sharing the key advertises
// the same kid.
func loadSigningKey(path string) (jwk.Key, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	key, err := jwk.ParseKey(raw, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse signing key %s: %w", path, err)
	}

	thumb, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("signing key thumbprint: %w", err)
	}
	kid := base64.RawURLEncoding.EncodeToString(thumb)[:kidLength]

	for name, value := range map[string]any{
		jwk.AlgorithmKey: jwa.ES256(),
		jwk.KeyIDKey:     kid,
	} {
		if err := key.Set(name, value); err != nil {
			return nil, fmt.Errorf("signing key %s: %w", name, err)
		}
	}

	return key, nil
}

// ensureKeyPair writes a P-256 pair when the signing key is absent. Existing
// keys are never overwritten.
func ensureKeyPair(signingPath, verifyPath string) error {
	if _, err := os.Stat(signingPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat signing key: %w", err)
	}

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate P-256 key: %w", err)
	}

	private, err := jwk.Import(ecKey)
	if err != nil {
		return fmt.Errorf("import generated key: %w", err)
	}
	public, err := private.PublicKey()
	if err != nil {
		return fmt.Errorf("public half: %w", err)
	}

	files := []struct {
		path string
		key  jwk.Key
		mode os.FileMode
	}{
		{signingPath, private, 0o600},
		{verifyPath, public, 0o644},
	}

	for _, f := range files {
		encoded, err := jwk.Pem(f.key)
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.path, err)
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
			return fmt.Errorf("key dir: %w", err)
		}
		if err := os.WriteFile(f.path, encoded, f.mode); err != nil {
			return fmt.Errorf("write %s: %w", f.path, err)
		}
	}

	return nil
}

// Identity is what an access token asserts about its holder.
type Identity struct {
	UserID       string
	Role         string
	BranchID     string
	TokenVersion int
}

type SignedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

func (s *TokenSigner) Issue(id Identity) (*SignedToken, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.cfg.AccessTTL)
	jti := uuid.NewString()

	token, err := jwt.NewBuilder().
		JwtID(jti).
		Issuer(s.cfg.Issuer).
		Audience([]string{s.cfg.Audience}).
		Subject(id.UserID).
		IssuedAt(issuedAt).
		NotBefore(issuedAt).
		Expiration(expiresAt).
		Claim(claimUse, useAccess).
		Claim(claimRole, id.Role).
		Claim(claimBranch, id.BranchID).
		Claim(claimVersion, id.TokenVersion).
		Build()
	if err != nil {
		return nil, fmt.Errorf("assemble token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), s.signing))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &SignedToken{Token: string(signed), TokenID: jti, ExpiresAt: expiresAt}, nil
}

// Verify classifies failures in a fixed order: missing, malformed, bad
// signature, expired, then any other claim problem.
func (s *TokenSigner) Verify(raw string) (*middleware.AccessTokenClaims, error) {
	if raw == "" {
		return nil, fmt.Errorf("verify: %w", core.ErrTokenMissing)
	}

	if _, err := jwt.ParseInsecure([]byte(raw)); err != nil {
		return nil, fmt.Errorf("verify: %w", core.ErrTokenMalformed)
	}

	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.ES256(), s.verifying),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", core.ErrTokenSignature)
	}

	expiresAt, ok := token.Expiration()
	if !ok {
		return nil, fmt.Errorf("verify: no exp claim: %w", core.ErrTokenInvalid)
	}
	if !s.now().Before(expiresAt.Add(clockSkew)) {
		return nil, fmt.Errorf("verify: %w", core.ErrTokenExpired)
	}

	if err := jwt.Validate(token,
		jwt.WithClock(jwt.ClockFunc(s.now)),
		jwt.WithAcceptableSkew(clockSkew),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
	); err != nil {
		return nil, fmt.Errorf("verify: %v: %w", err, core.ErrTokenInvalid)
	}

	return readClaims(token, expiresAt)
}

func readClaims(token jwt.Token, expiresAt time.Time) (*middleware.AccessTokenClaims, error) {
	invalid := func(what string) error {
		return fmt.Errorf("verify: %s: %w", what, core.ErrTokenInvalid)
	}

	var use string
	if err := token.Get(claimUse, &use); err != nil || use != useAccess {
		return nil, invalid("not an access token")
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, invalid("no subject")
	}

	jti, ok := token.JwtID()
	if !ok || jti == "" {
		return nil, invalid("no jti")
	}

	var role string
	if err := token.Get(claimRole, &role); err != nil || role == "" {
		return nil, invalid("no role")
	}

	// JSON numbers decode as float64.
	var version float64
	if err := token.Get(claimVersion, &version); err != nil {
		return nil, invalid("no token version")
	}

	var branch string
	_ = token.Get(claimBranch, &branch) //nolint:errcheck // optional

	return &middleware.AccessTokenClaims{
		UserID:       subject,
		Role:         role,
		BranchID:     branch,
		TokenVersion: int(version),
		TokenID:      jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *TokenSigner) AccessTTL() time.Duration {
	return s.cfg.AccessTTL
}

func (s *TokenSigner) KeyID() string {
	kid, _ := s.verifying.KeyID()
	return kid
}

// JWKS serves the verifying key for clients that check tokens themselves.
func (s *TokenSigner) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body, err := json.Marshal(s.published)
		if err != nil {
			core.InternalServerError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/jwk-set+json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(body)
	}
}

// RefreshToken is an opaque secret. Only Hash is persisted.
type RefreshToken struct {
	Token     string
	Hash      string
	FamilyID  string
	ExpiresAt time.Time
}

// NewRefresh mints a refresh token. An empty familyID starts a new family;
// rotation passes the previous one along.
func (s *TokenSigner) NewRefresh(familyID string) (*RefreshToken, error) {
	secret, err := core.GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("refresh secret: %w", err)
	}

	if familyID == "" {
		familyID = uuid.NewString()
	}

	return &RefreshToken{
		Token:     secret,
		Hash:      core.HashToken(secret),
		FamilyID:  familyID,
		ExpiresAt: s.now().Add(s.cfg.RefreshTTL),
	}, nil
}
