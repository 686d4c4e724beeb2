// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aquasense/sonda-api/internal/auth"
	"github.com/aquasense/sonda-api/internal/core"
)

// Service is the credential store. It satisfies auth.CredentialStore.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(
	ctx context.Context,
	in auth.RegisterInput,
) (*auth.UserInfo, error) {
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = RoleOperator
	}

	if role == RoleAccountAdmin && in.ActorRole != RoleAccountAdmin {
		return nil, fmt.Errorf("register %s: %w", role, core.ErrForbidden)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("register: name is required: %w", core.ErrInvalidInput)
	}

	hash, err := core.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New().String(),
		BranchID:     in.BranchID,
		Name:         name,
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
	}

	if err := s.repo.CreateWithRole(ctx, user, role); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// Verify distinguishes an inactive account from a bad password only after the
// password matched. An unknown email still pays for one hash.
func (s *Service) Verify(
	ctx context.Context,
	email, password string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	var storedHash *string
	if user != nil {
		storedHash = &user.PasswordHash
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(password, storedHash)
	if err != nil {
		s.logger.WarnContext(ctx, "stored password hash unreadable",
			"error", err,
		)
		return nil, auth.ErrInvalidCredentials
	}
	if user == nil || !valid {
		return nil, auth.ErrInvalidCredentials
	}

	if !user.Active {
		return nil, auth.ErrAccountInactive
	}

	if newHash != "" {
		if err := s.repo.UpdatePassword(ctx, user.ID, newHash); err != nil {
			s.logger.WarnContext(ctx, "password rehash failed",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	return toUserInfo(user), nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, current, next string,
) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !user.Active {
		return auth.ErrAccountInactive
	}

	valid, err := core.VerifyPassword(current, user.PasswordHash)
	if err != nil || !valid {
		return auth.ErrInvalidCredentials
	}

	hash, err := core.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.repo.UpdatePassword(ctx, userID, hash)
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(ctx context.Context, userID string) (int, error) {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if req.Name == nil {
		return s.repo.GetByID(ctx, userID)
	}

	name := strings.TrimSpace(*req.Name)
	if name == "" {
		return nil, fmt.Errorf("update user: name is required: %w", core.ErrInvalidInput)
	}

	return s.repo.UpdateName(ctx, userID, name)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// SetActive activates or deactivates an account. Users are never deleted.
func (s *Service) SetActive(
	ctx context.Context,
	actorID, targetID string,
	active bool,
) (*User, error) {
	if !active && actorID == targetID {
		return nil, fmt.Errorf(
			"deactivate user: cannot deactivate your own account: %w",
			core.ErrInvalidInput,
		)
	}

	if err := s.repo.SetActive(ctx, targetID, active); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user active flag changed",
		"actor_id", actorID,
		"user_id", targetID,
		"active", active,
	)

	return s.repo.GetByID(ctx, targetID)
}
