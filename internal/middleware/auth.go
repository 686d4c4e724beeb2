// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aquasense/sonda-api/internal/core"
)

const (
	RoleOperator     = "operator"
	RoleAccountAdmin = "account-admin"
)

const claimsKey contextKey = "claims"

type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*AccessTokenClaims, error)
}

// AccessTokenClaims is the verified identity of a request. Handlers and the
// access policy read it from the context and never re-query the store.
type AccessTokenClaims struct {
	UserID       string
	Role         string
	BranchID     string
	TokenVersion int
	TokenID      string
	ExpiresAt    time.Time
}

// Authenticator rejects requests without a valid bearer token. Every token
// failure gets the same 401 body; the reason is logged only.
func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := verify(r, verifier)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
			case core.IsTokenError(err):
				logAuthFailure(r, err)
				core.JSONError(w, core.TokenError(err))
			case core.IsAppError(err):
				core.JSONError(w, err)
			default:
				core.InternalServerError(w, err)
			}
		})
	}
}

// OptionalAuth attaches claims for a valid bearer token and lets every other
// request through anonymously.
func OptionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ExtractToken(r) != "" {
				if claims, err := verify(r, verifier); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				} else {
					logAuthFailure(r, err)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func verify(r *http.Request, verifier TokenVerifier) (*AccessTokenClaims, error) {
	token := ExtractToken(r)
	if token == "" {
		return nil, core.ErrTokenMissing
	}
	return verifier.VerifyAccessToken(r.Context(), token)
}

// RequireRole must run after Authenticator.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				core.JSONError(w, core.UnauthorizedError("authentication required"))
				return
			}
			if !slices.Contains(roles, claims.Role) {
				core.JSONError(w, core.ForbiddenError("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireAccountAdmin(next http.Handler) http.Handler {
	return RequireRole(RoleAccountAdmin)(next)
}

// ExtractToken returns the credential of an "Authorization: Bearer" header.
func ExtractToken(r *http.Request) string {
	scheme, credential, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(credential)
}

func logAuthFailure(r *http.Request, err error) {
	slog.InfoContext(r.Context(), "authentication failed",
		"reason", err.Error(),
		"request_id", GetRequestID(r.Context()),
		"path", r.URL.Path,
	)
}

func WithClaims(ctx context.Context, claims *AccessTokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func GetClaims(ctx context.Context) *AccessTokenClaims {
	claims, _ := ctx.Value(claimsKey).(*AccessTokenClaims)
	return claims
}

func GetUserID(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.UserID
	}
	return ""
}

func GetUserRole(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.Role
	}
	return ""
}

func GetBranchID(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.BranchID
	}
	return ""
}

func IsAuthenticated(ctx context.Context) bool {
	return GetUserID(ctx) != ""
}

func IsAccountAdmin(ctx context.Context) bool {
	return GetUserRole(ctx) == RoleAccountAdmin
}
