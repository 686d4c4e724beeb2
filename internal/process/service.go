// AngelaMos | 2026
// service.go

package process

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aquasense/sonda-api/internal/access"
	"github.com/aquasense/sonda-api/internal/core"
)

type Authorizer interface {
	Authorize(
		ctx context.Context,
		userID, installationID string,
		action access.Action,
	) (*access.Facts, error)
}

type Service struct {
	repo   Repository
	policy Authorizer
}

func NewService(repo Repository, policy Authorizer) *Service {
	return &Service{repo: repo, policy: policy}
}

func (s *Service) List(ctx context.Context, userID, installationID string) ([]Process, error) {
	if _, err := s.policy.Authorize(ctx, userID, installationID, access.ActionRead); err != nil {
		return nil, err
	}

	return s.repo.ListByInstallation(ctx, installationID)
}

func (s *Service) Create(
	ctx context.Context,
	userID, installationID string,
	req CreateProcessRequest,
) (*Process, error) {
	startedOn, err := time.Parse(dateLayout, req.StartedOn)
	if err != nil {
		return nil, fmt.Errorf("create process: started_on must be a date: %w", core.ErrInvalidInput)
	}

	p := &Process{
		ID:             uuid.New().String(),
		InstallationID: installationID,
		SpeciesID:      req.SpeciesID,
		StartedOn:      startedOn,
		Status:         req.Status,
		Notes:          strings.TrimSpace(req.Notes),
	}

	if req.FinishedOn != nil {
		finishedOn, err := time.Parse(dateLayout, *req.FinishedOn)
		if err != nil {
			return nil, fmt.Errorf("create process: finished_on must be a date: %w", core.ErrInvalidInput)
		}
		if finishedOn.Before(startedOn) {
			return nil, fmt.Errorf(
				"create process: finished_on cannot be before started_on: %w",
				core.ErrInvalidInput,
			)
		}
		p.FinishedOn = &finishedOn
	}

	if p.Status == "" {
		p.Status = StatusActive
		if p.FinishedOn != nil {
			p.Status = StatusFinished
		}
	}

	if _, err := s.policy.Authorize(ctx, userID, installationID, access.ActionWrite); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Service) ListSpecies(ctx context.Context) ([]Species, error) {
	return s.repo.ListSpecies(ctx)
}
