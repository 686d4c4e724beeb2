// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aquasense/sonda-api/internal/core"
	"github.com/aquasense/sonda-api/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account inactive")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidBranch      = errors.New("invalid branch")
	ErrTokenReuse         = errors.New("token reuse detected")
)

// UserInfo is the credential store's view of a user as the session layer needs
// it.
type UserInfo struct {
	ID           string
	Email        string
	Name         string
	Role         string
	BranchID     *string
	Active       bool
	TokenVersion int
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	BranchID *string
	// ActorRole is the role of an authenticated caller registering someone
	// else; empty for self-registration.
	ActorRole string
}

// CredentialStore owns user identity and password verification.
type CredentialStore interface {
	Register(ctx context.Context, in RegisterInput) (*UserInfo, error)
	Verify(ctx context.Context, email, password string) (*UserInfo, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) (int, error)
}

type Service struct {
	repo        Repository
	tokens      *TokenSigner
	credentials CredentialStore
	revoked     RevocationList
	logger      *slog.Logger
}

func NewService(
	repo Repository,
	tokens *TokenSigner,
	credentials CredentialStore,
	revoked RevocationList,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:        repo,
		tokens:      tokens,
		credentials: credentials,
		revoked:     revoked,
		logger:      logger,
	}
}

func (s *Service) Register(
	ctx context.Context,
	in RegisterInput,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	user, err := s.credentials.Register(ctx, in)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID,
		"role", user.Role,
	)

	return s.openSession(ctx, user, client{userAgent, ipAddress}, sessionSlot{id: uuid.NewString()})
}

// Login never tells the caller whether the email exists or the account is
// inactive; the distinction is only logged.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	user, err := s.credentials.Verify(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountInactive):
			s.logger.WarnContext(ctx, "login rejected: account inactive",
				"ip", ipAddress,
			)
			return nil, ErrInvalidCredentials
		case errors.Is(err, ErrInvalidCredentials):
			s.logger.InfoContext(ctx, "login rejected: bad credentials",
				"ip", ipAddress,
			)
			return nil, ErrInvalidCredentials
		default:
			return nil, fmt.Errorf("verify credentials: %w", err)
		}
	}

	return s.openSession(ctx, user, client{userAgent, ipAddress}, sessionSlot{id: uuid.NewString()})
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	stored, err := s.repo.ByTokenHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	if stored.IsUsed {
		if revokeErr := s.repo.RevokeFamily(ctx, stored.FamilyID); revokeErr != nil {
			s.logger.ErrorContext(ctx, "revoke reused token family",
				"family_id", stored.FamilyID,
				"error", revokeErr,
			)
		}
		s.logger.WarnContext(ctx, "refresh token reuse detected",
			"user_id", stored.UserID,
			"family_id", stored.FamilyID,
		)
		return nil, ErrTokenReuse
	}

	if !stored.IsValid(s.tokens.now()) {
		if stored.IsRevoked() {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	user, err := s.credentials.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.Active {
		//nolint:errcheck // the refresh is refused either way
		_ = s.repo.RevokeUser(ctx, user.ID)
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	}

	// Claim the old session before writing its successor. Of two concurrent
	// refreshes with one token only the first claim succeeds.
	successor := uuid.NewString()
	if err := s.repo.MarkRotated(ctx, stored.ID, successor); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrTokenReuse
		}
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	return s.openSession(ctx, user, client{userAgent, ipAddress}, sessionSlot{
		id:     successor,
		family: stored.FamilyID,
	})
}

// Logout revokes the presented refresh token (if any) and blacklists the
// access token that authenticated the call until it expires.
func (s *Service) Logout(
	ctx context.Context,
	claims *middleware.AccessTokenClaims,
	refreshToken string,
) error {
	if claims == nil {
		return fmt.Errorf("logout: %w", core.ErrTokenMissing)
	}

	if refreshToken != "" {
		stored, err := s.repo.ByTokenHash(ctx, core.HashToken(refreshToken))
		switch {
		case errors.Is(err, core.ErrNotFound):
		case err != nil:
			return fmt.Errorf("find session: %w", err)
		case stored.UserID != claims.UserID:
			return fmt.Errorf("logout: %w", core.ErrForbidden)
		default:
			if revokeErr := s.repo.Revoke(ctx, stored.ID); revokeErr != nil &&
				!errors.Is(revokeErr, core.ErrNotFound) {
				return fmt.Errorf("revoke session: %w", revokeErr)
			}
		}
	}

	if err := s.revoked.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}

	return nil
}

// RevokeAllSessions ends every refresh session of a user and bumps the token
// version. Access tokens carrying an older version are rejected through the
// revocation list, which fails open like the per-token check.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) error {
	if err := s.repo.RevokeUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all sessions: %w", err)
	}

	version, err := s.credentials.IncrementTokenVersion(ctx, userID)
	if err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	if err := s.revoked.RevokeIssuedBefore(ctx, userID, version, s.tokens.AccessTTL()); err != nil {
		s.logger.WarnContext(ctx, "revoke outstanding access tokens",
			"user_id", userID,
			"error", err,
		)
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	claims *middleware.AccessTokenClaims,
	currentPassword, newPassword string,
) error {
	if claims == nil {
		return fmt.Errorf("change password: %w", core.ErrTokenMissing)
	}

	if err := s.credentials.ChangePassword(
		ctx,
		claims.UserID,
		currentPassword,
		newPassword,
	); err != nil {
		return err
	}

	// The password is already changed; a failed revocation must not report
	// the change as failed.
	if err := s.RevokeAllSessions(ctx, claims.UserID); err != nil {
		s.logger.ErrorContext(ctx, "end sessions after password change",
			"user_id", claims.UserID,
			"error", err,
		)
	}

	if err := s.revoked.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		s.logger.WarnContext(ctx, "blacklist access token after password change",
			"user_id", claims.UserID,
			"error", err,
		)
	}

	return nil
}

// VerifyAccessToken implements middleware.TokenVerifier. The revocation list
// fails open: a Redis outage must not lock every operator out.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.TokenID, claims.UserID, claims.TokenVersion)
	if err != nil {
		s.logger.WarnContext(ctx, "revocation list unavailable, failing open",
			"error", err,
		)
		return claims, nil
	}

	if revoked {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	return claims, nil
}

// client identifies the device a session was opened from.
type client struct {
	userAgent string
	ip        string
}

// sessionSlot is the id a new session will take and the family it joins. An
// empty family starts a new one.
type sessionSlot struct {
	id     string
	family string
}

func (s *Service) openSession(
	ctx context.Context,
	user *UserInfo,
	from client,
	slot sessionSlot,
) (*AuthResponse, error) {
	identity := Identity{UserID: user.ID, Role: user.Role, TokenVersion: user.TokenVersion}
	if user.BranchID != nil {
		identity.BranchID = *user.BranchID
	}

	access, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.tokens.NewRefresh(slot.family)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, &Session{
		ID:        slot.id,
		UserID:    user.ID,
		TokenHash: refresh.Hash,
		FamilyID:  refresh.FamilyID,
		ExpiresAt: refresh.ExpiresAt,
		UserAgent: from.userAgent,
		IPAddress: from.ip,
	}); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return &AuthResponse{
		User: UserSummary{
			ID:       user.ID,
			Name:     user.Name,
			Email:    user.Email,
			Role:     user.Role,
			BranchID: user.BranchID,
		},
		Tokens: TokenResponse{
			AccessToken:  access.Token,
			RefreshToken: refresh.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
			ExpiresAt:    access.ExpiresAt,
		},
	}, nil
}
