// AngelaMos | 2026
// service.go

package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aquasense/sonda-api/internal/core"
)

type Grant struct {
	UserID         string    `db:"user_id"         json:"user_id"`
	InstallationID string    `db:"installation_id" json:"installation_id"`
	GrantedBy      string    `db:"granted_by"      json:"granted_by"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
	UserName       string    `db:"user_name"       json:"user_name"`
	UserEmail      string    `db:"user_email"      json:"user_email"`
}

// Service manages explicit access grants. Every call is authorized against
// the installation first.
type Service struct {
	policy *Policy
	repo   Repository
	logger *slog.Logger
}

func NewService(policy *Policy, repo Repository, logger *slog.Logger) *Service {
	return &Service{policy: policy, repo: repo, logger: logger}
}

func (s *Service) ListGrants(
	ctx context.Context,
	actorID, installationID string,
) ([]Grant, error) {
	if _, err := s.policy.Authorize(ctx, actorID, installationID, ActionRead); err != nil {
		return nil, err
	}

	return s.repo.ListGrants(ctx, installationID)
}

// GrantAccess is idempotent. The target must be an existing active user.
func (s *Service) GrantAccess(
	ctx context.Context,
	actorID, installationID, targetUserID string,
) (*Grant, error) {
	if _, err := s.policy.Authorize(ctx, actorID, installationID, ActionWrite); err != nil {
		return nil, err
	}

	if _, err := uuid.Parse(targetUserID); err != nil {
		return nil, fmt.Errorf("grant: user_id must be a valid id: %w", core.ErrInvalidInput)
	}

	active, err := s.repo.UserActive(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("grant: user does not exist: %w", core.ErrInvalidInput)
		}
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("grant: user is inactive: %w", core.ErrInvalidInput)
	}

	grant, err := s.repo.AddGrant(ctx, targetUserID, installationID, actorID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "access granted",
		"actor_id", actorID,
		"user_id", targetUserID,
		"installation_id", installationID,
	)

	return grant, nil
}

// RevokeAccess removes an explicit grant. The creator's own grant stays, so
// a creator never loses the row that records the original assignment.
func (s *Service) RevokeAccess(
	ctx context.Context,
	actorID, installationID, targetUserID string,
) error {
	facts, err := s.policy.Authorize(ctx, actorID, installationID, ActionWrite)
	if err != nil {
		return err
	}

	if targetUserID == facts.CreatorID {
		return fmt.Errorf(
			"revoke: the creator's grant cannot be removed: %w",
			core.ErrConflict,
		)
	}

	if _, err := uuid.Parse(targetUserID); err != nil {
		return fmt.Errorf("revoke grant: %w", core.ErrNotFound)
	}

	if err := s.repo.RemoveGrant(ctx, targetUserID, installationID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "access revoked",
		"actor_id", actorID,
		"user_id", targetUserID,
		"installation_id", installationID,
	)

	return nil
}
