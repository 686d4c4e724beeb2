// AngelaMos | 2026
// service.go

package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aquasense/sonda-api/internal/access"
	"github.com/aquasense/sonda-api/internal/core"
)

// Authorizer checks access on the parent installation.
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

func (s *Service) List(ctx context.Context, userID, installationID string) ([]Task, error) {
	if _, err := s.policy.Authorize(ctx, userID, installationID, access.ActionRead); err != nil {
		return nil, err
	}

	return s.repo.ListByInstallation(ctx, installationID)
}

func (s *Service) Create(
	ctx context.Context,
	userID, installationID string,
	req CreateTaskRequest,
) (*Task, error) {
	kind := req.Kind
	if kind == "" {
		kind = KindManual
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	t := &Task{
		ID:             uuid.New().String(),
		InstallationID: installationID,
		Name:           strings.TrimSpace(req.Name),
		Kind:           kind,
		WindowStart:    req.WindowStart,
		WindowEnd:      req.WindowEnd,
		ThresholdMin:   req.ThresholdMin,
		ThresholdMax:   req.ThresholdMax,
		Action:         strings.TrimSpace(req.Action),
		Enabled:        enabled,
		Status:         StatusPending,
	}

	if err := Validate(t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	if _, err := s.policy.Authorize(ctx, userID, installationID, access.ActionWrite); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	return t, nil
}

// Update checks the patch on its own, then merges it and re-validates the
// merged task, since a bound may only conflict with the stored other bound.
func (s *Service) Update(
	ctx context.Context,
	userID, taskID string,
	req UpdateTaskRequest,
) (*Task, error) {
	if err := validatePatch(req); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	t, err := s.resolve(ctx, userID, taskID, access.ActionWrite)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Kind != nil {
		t.Kind = *req.Kind
	}
	if req.WindowStart != nil {
		t.WindowStart = req.WindowStart
	}
	if req.WindowEnd != nil {
		t.WindowEnd = req.WindowEnd
	}
	if req.ThresholdMin != nil {
		t.ThresholdMin = req.ThresholdMin
	}
	if req.ThresholdMax != nil {
		t.ThresholdMax = req.ThresholdMax
	}
	if req.Action != nil {
		t.Action = strings.TrimSpace(*req.Action)
	}
	if req.Enabled != nil {
		t.Enabled = *req.Enabled
	}
	if req.Status != nil {
		s.setStatus(t, *req.Status)
	}

	if err := Validate(t); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	return t, nil
}

func (s *Service) setStatus(t *Task, status string) {
	switch {
	case status == StatusCompleted && t.Status != StatusCompleted:
		now := s.now().UTC()
		t.CompletedAt = &now
	case status != StatusCompleted:
		t.CompletedAt = nil
	}
	t.Status = status
}

// Delete removes the row. Tasks have no children.
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	t, err := s.resolve(ctx, userID, taskID, access.ActionDelete)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, t.ID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "task deleted",
		"task_id", t.ID,
		"installation_id", t.InstallationID,
		"user_id", userID,
	)

	return nil
}

// resolve loads the task and authorizes on its installation. An unknown task
// is Forbidden, the same answer as a task the caller cannot reach.
func (s *Service) resolve(
	ctx context.Context,
	userID, taskID string,
	action access.Action,
) (*Task, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, fmt.Errorf("resolve task: %w", core.ErrForbidden)
	}

	t, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("resolve task: %w", core.ErrForbidden)
		}
		return nil, err
	}

	if _, err := s.policy.Authorize(ctx, userID, t.InstallationID, action); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks the task's internal consistency.
func Validate(t *Task) error {
	if t.Name == "" {
		return fmt.Errorf("name is required: %w", core.ErrInvalidInput)
	}
	if t.Action == "" {
		return fmt.Errorf("action is required: %w", core.ErrInvalidInput)
	}

	if !validKind(t.Kind) {
		return errBadKind
	}

	if t.ThresholdMin != nil && t.ThresholdMax != nil && *t.ThresholdMin >= *t.ThresholdMax {
		return fmt.Errorf("threshold_min must be less than threshold_max: %w", core.ErrInvalidInput)
	}
	if t.WindowStart != nil && t.WindowEnd != nil && !t.WindowStart.Before(*t.WindowEnd) {
		return fmt.Errorf("window_start must be before window_end: %w", core.ErrInvalidInput)
	}

	if t.Kind == KindThreshold && t.ThresholdMin == nil && t.ThresholdMax == nil {
		return fmt.Errorf("threshold tasks need threshold_min or threshold_max: %w", core.ErrInvalidInput)
	}
	if t.Kind == KindScheduled && t.WindowStart == nil {
		return fmt.Errorf("scheduled tasks need window_start: %w", core.ErrInvalidInput)
	}

	return nil
}

var errBadKind = fmt.Errorf("kind must be one of manual, scheduled or threshold: %w", core.ErrInvalidInput)

func validKind(kind string) bool {
	switch kind {
	case KindManual, KindScheduled, KindThreshold:
		return true
	}
	return false
}

// validatePatch rejects the fields of an update that are wrong whatever the
// stored task holds. Kind requirements on bounds wait for the merged task.
func validatePatch(req UpdateTaskRequest) error {
	patch := Task{
		Name:         "-",
		Action:       "-",
		Kind:         KindManual,
		WindowStart:  req.WindowStart,
		WindowEnd:    req.WindowEnd,
		ThresholdMin: req.ThresholdMin,
		ThresholdMax: req.ThresholdMax,
	}
	if req.Name != nil {
		patch.Name = strings.TrimSpace(*req.Name)
	}
	if req.Action != nil {
		patch.Action = strings.TrimSpace(*req.Action)
	}
	if req.Kind != nil && !validKind(*req.Kind) {
		return errBadKind
	}
	return Validate(&patch)
}
