// AngelaMos | 2026
// service.go

package sensor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aquasense/sonda-api/internal/access"
	"github.com/aquasense/sonda-api/internal/core"
)

// Authorizer checks access on the parent installation. Sensors carry no
// access rules of their own.
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

func (s *Service) List(ctx context.Context, userID, installationID string) ([]Sensor, error) {
	if _, err := s.policy.Authorize(ctx, userID, installationID, access.ActionRead); err != nil {
		return nil, err
	}

	return s.repo.ListByInstallation(ctx, installationID)
}

func (s *Service) Create(
	ctx context.Context,
	userID, installationID string,
	req CreateSensorRequest,
) (*Sensor, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return nil, fmt.Errorf("create sensor: label is required: %w", core.ErrInvalidInput)
	}

	status := req.Status
	if status == "" {
		status = StatusActive
	}

	sensor := &Sensor{
		ID:             uuid.New().String(),
		InstallationID: installationID,
		SensorTypeID:   req.SensorTypeID,
		Label:          label,
		Status:         status,
	}

	if _, err := s.policy.Authorize(ctx, userID, installationID, access.ActionWrite); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, sensor); err != nil {
		return nil, err
	}

	return sensor, nil
}

func (s *Service) ListTypes(ctx context.Context) ([]SensorType, error) {
	return s.repo.ListTypes(ctx)
}
