// AngelaMos | 2026
// service.go

package installation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aquasense/sonda-api/internal/access"
	"github.com/aquasense/sonda-api/internal/core"
	"github.com/aquasense/sonda-api/internal/middleware"
)

const maxNameLength = 150

// Authorizer is the part of access.Policy the installation service needs.
type Authorizer interface {
	Authorize(
		ctx context.Context,
		userID, installationID string,
		action access.Action,
	) (*access.Facts, error)
	Filter(action access.Action, alias, userArg string) string
}

type CreateInput struct {
	UserID      string
	ActorRole   string
	Name        string
	Description string
	BranchID    *string
	Usage       string
	InstalledAt *time.Time
}

type Service struct {
	repo   Repository
	policy Authorizer
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, policy Authorizer, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// List runs the read rule inside the query; rows the caller cannot read are
// never loaded.
func (s *Service) List(ctx context.Context, userID string) ([]Installation, error) {
	filter := s.policy.Filter(access.ActionRead, "i", "$1")
	return s.repo.List(ctx, userID, filter)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Installation, error) {
	name, err := cleanName("create installation", in.Name)
	if err != nil {
		return nil, err
	}

	branchID, err := s.resolveBranch(ctx, in)
	if err != nil {
		return nil, err
	}

	usage := in.Usage
	if usage == "" {
		usage = UsageAquaculture
	}

	installedAt := s.now().UTC().Truncate(24 * time.Hour)
	if in.InstalledAt != nil {
		installedAt = *in.InstalledAt
	}

	inst := &Installation{
		ID:          uuid.New().String(),
		CreatorID:   in.UserID,
		BranchID:    branchID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Status:      StatusActive,
		Usage:       usage,
		InstalledAt: installedAt,
	}

	if err := s.repo.Create(ctx, inst); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "installation created",
		"installation_id", inst.ID,
		"user_id", in.UserID,
	)

	return inst, nil
}

// resolveBranch defaults to the creator's branch. Only account admins may
// place an installation in a branch other than their own.
func (s *Service) resolveBranch(ctx context.Context, in CreateInput) (*string, error) {
	own, err := s.repo.UserBranch(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.BranchID == nil || *in.BranchID == "" {
		return own, nil
	}

	if in.ActorRole == middleware.RoleAccountAdmin {
		return in.BranchID, nil
	}

	if own == nil || *own != *in.BranchID {
		return nil, fmt.Errorf(
			"create installation: branch_id must be your own branch: %w",
			core.ErrInvalidInput,
		)
	}

	return own, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Installation, error) {
	if _, err := s.policy.Authorize(ctx, userID, id, access.ActionRead); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(
	ctx context.Context,
	userID, id string,
	req UpdateInstallationRequest,
) (*Installation, error) {
	var name string
	if req.Name != nil {
		cleaned, err := cleanName("update installation", *req.Name)
		if err != nil {
			return nil, err
		}
		name = cleaned
	}

	if _, err := s.policy.Authorize(ctx, userID, id, access.ActionWrite); err != nil {
		return nil, err
	}

	inst, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		inst.Name = name
	}
	if req.Description != nil {
		inst.Description = strings.TrimSpace(*req.Description)
	}
	if req.Usage != nil {
		inst.Usage = *req.Usage
	}
	if req.Status != nil {
		inst.Status = *req.Status
	}

	if err := s.repo.Update(ctx, inst); err != nil {
		return nil, err
	}

	return inst, nil
}

// Delete flips the status to deleted. Deleting twice is NotFound.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.policy.Authorize(ctx, userID, id, access.ActionDelete); err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "installation deleted",
		"installation_id", id,
		"user_id", userID,
	)

	return nil
}

func (s *Service) Restore(ctx context.Context, userID, id string) (*Installation, error) {
	if _, err := s.policy.Authorize(ctx, userID, id, access.ActionRestore); err != nil {
		return nil, err
	}

	if err := s.repo.Restore(ctx, id); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "installation restored",
		"installation_id", id,
		"user_id", userID,
	)

	return s.repo.GetByID(ctx, id)
}

// cleanName trims raw and bounds it in characters, the unit of the column's
// VARCHAR limit.
func cleanName(op, raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%s: name is required: %w", op, core.ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%s: name must be at most %d characters: %w",
			op, maxNameLength, core.ErrInvalidInput)
	}
	return name, nil
}
