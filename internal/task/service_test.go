// AngelaMos | 2026
// service_test.go

package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasense/sonda-api/internal/access"
	"github.com/aquasense/sonda-api/internal/core"
)

const (
	owner    = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	stranger = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
	pond     = "7b0c5f0e-4d7a-4f55-9d59-3c3a0f0d1a01"
	missing  = "99999999-9999-4999-8999-999999999999"
)

type fakeAuthorizer struct {
	allowed map[string]bool
	calls   []access.Action
}

func (f *fakeAuthorizer) Authorize(
	_ context.Context,
	userID, _ string,
	action access.Action,
) (*access.Facts, error) {
	f.calls = append(f.calls, action)
	if !f.allowed[userID] {
		return nil, fmt.Errorf("authorize: %w", core.ErrForbidden)
	}
	return &access.Facts{Status: "active"}, nil
}

type fakeRepo struct {
	tasks map[string]*Task
}

func (f *fakeRepo) ListByInstallation(_ context.Context, installationID string) ([]Task, error) {
	out := []Task{}
	for _, t := range f.tasks {
		if t.InstallationID == installationID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get task: %w", core.ErrNotFound)
	}
	copied := *t
	return &copied, nil
}

func (f *fakeRepo) Create(_ context.Context, t *Task) error {
	copied := *t
	f.tasks[t.ID] = &copied
	return nil
}

func (f *fakeRepo) Update(_ context.Context, t *Task) error {
	copied := *t
	f.tasks[t.ID] = &copied
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return fmt.Errorf("delete task: %w", core.ErrNotFound)
	}
	delete(f.tasks, id)
	return nil
}

func newTestService() (*Service, *fakeRepo, *fakeAuthorizer) {
	repo := &fakeRepo{tasks: map[string]*Task{}}
	authz := &fakeAuthorizer{allowed: map[string]bool{owner: true}}
	svc := NewService(repo, authz, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	return svc, repo, authz
}

func f64(v float64) *float64 { return &v }

func at(hour int) *time.Time {
	t := time.Date(2026, 3, 1, hour, 0, 0, 0, time.UTC)
	return &t
}

func TestValidate(t *testing.T) {
	base := func() Task {
		return Task{Name: "aerate", Action: "aerator_on", Kind: KindManual}
	}

	tests := []struct {
		name   string
		mutate func(*Task)
		valid  bool
	}{
		{"minimal", func(*Task) {}, true},
		{"missing name", func(t *Task) { t.Name = "" }, false},
		{"missing action", func(t *Task) { t.Action = "" }, false},
		{"unknown kind", func(t *Task) { t.Kind = "weekly" }, false},
		{"min below max", func(t *Task) { t.ThresholdMin, t.ThresholdMax = f64(4), f64(6) }, true},
		{"min equals max", func(t *Task) { t.ThresholdMin, t.ThresholdMax = f64(5), f64(5) }, false},
		{"min above max", func(t *Task) { t.ThresholdMin, t.ThresholdMax = f64(7), f64(6) }, false},
		{"only min", func(t *Task) { t.ThresholdMin = f64(7) }, true},
		{"window ordered", func(t *Task) { t.WindowStart, t.WindowEnd = at(6), at(8) }, true},
		{"window reversed", func(t *Task) { t.WindowStart, t.WindowEnd = at(8), at(6) }, false},
		{"threshold without bounds", func(t *Task) { t.Kind = KindThreshold }, false},
		{"threshold with max", func(t *Task) { t.Kind, t.ThresholdMax = KindThreshold, f64(3) }, true},
		{"scheduled without start", func(t *Task) { t.Kind = KindScheduled }, false},
		{"scheduled with start", func(t *Task) { t.Kind, t.WindowStart = KindScheduled, at(6) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := base()
			tt.mutate(&task)
			err := Validate(&task)
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}
}

func TestCreateTask(t *testing.T) {
	svc, repo, authz := newTestService()
	ctx := context.Background()

	task, err := svc.Create(ctx, owner, pond, CreateTaskRequest{
		Name:   " night aeration ",
		Action: "aerator_on",
	})
	require.NoError(t, err)
	assert.Equal(t, "night aeration", task.Name)
	assert.Equal(t, KindManual, task.Kind)
	assert.Equal(t, StatusPending, task.Status)
	assert.True(t, task.Enabled)
	assert.Equal(t, access.ActionWrite, authz.calls[0])

	_, err = svc.Create(ctx, owner, pond, CreateTaskRequest{
		Name:         "bad",
		Action:       "aerator_on",
		ThresholdMin: f64(9),
		ThresholdMax: f64(2),
	})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.Create(ctx, stranger, pond, CreateTaskRequest{Name: "x", Action: "y"})
	require.ErrorIs(t, err, core.ErrForbidden)

	assert.Len(t, repo.tasks, 1)
}

func TestInvalidInputRejectedBeforeAccessCheck(t *testing.T) {
	svc, repo, authz := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, stranger, pond, CreateTaskRequest{
		Name:         "bad",
		Action:       "aerator_on",
		ThresholdMin: f64(9),
		ThresholdMax: f64(2),
	})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	blank := "  "
	weekly := "weekly"
	patches := []UpdateTaskRequest{
		{Name: &blank},
		{Kind: &weekly},
		{WindowStart: at(9), WindowEnd: at(7)},
		{ThresholdMin: f64(3), ThresholdMax: f64(3)},
	}
	for _, patch := range patches {
		_, err = svc.Update(ctx, stranger, missing, patch)
		require.ErrorIs(t, err, core.ErrInvalidInput)
	}

	assert.Empty(t, authz.calls)
	assert.Empty(t, repo.tasks)
}

func TestUpdateTaskMergesAndRevalidates(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	task, err := svc.Create(ctx, owner, pond, CreateTaskRequest{
		Name:         "oxygen guard",
		Kind:         KindThreshold,
		ThresholdMin: f64(4),
		ThresholdMax: f64(8),
		Action:       "aerator_on",
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, owner, task.ID, UpdateTaskRequest{ThresholdMin: f64(9)})
	require.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, 4.0, *repo.tasks[task.ID].ThresholdMin)

	updated, err := svc.Update(ctx, owner, task.ID, UpdateTaskRequest{ThresholdMin: f64(5)})
	require.NoError(t, err)
	assert.Equal(t, 5.0, *updated.ThresholdMin)
	assert.Equal(t, 8.0, *updated.ThresholdMax)
	assert.Equal(t, "oxygen guard", updated.Name)
}

func TestUpdateTaskCompletion(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	task, err := svc.Create(ctx, owner, pond, CreateTaskRequest{Name: "feed", Action: "feeder_on"})
	require.NoError(t, err)

	completed := StatusCompleted
	updated, err := svc.Update(ctx, owner, task.ID, UpdateTaskRequest{Status: &completed})
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, svc.now().UTC(), *updated.CompletedAt)

	pending := StatusPending
	updated, err = svc.Update(ctx, owner, task.ID, UpdateTaskRequest{Status: &pending})
	require.NoError(t, err)
	assert.Nil(t, updated.CompletedAt)
}

func TestUnknownTaskIsForbidden(t *testing.T) {
	svc, _, authz := newTestService()
	ctx := context.Background()

	name := "x"
	_, err := svc.Update(ctx, owner, missing, UpdateTaskRequest{Name: &name})
	require.ErrorIs(t, err, core.ErrForbidden)

	require.ErrorIs(t, svc.Delete(ctx, owner, "not-a-uuid"), core.ErrForbidden)
	assert.Empty(t, authz.calls)
}

func TestDeleteTask(t *testing.T) {
	svc, repo, authz := newTestService()
	ctx := context.Background()

	task, err := svc.Create(ctx, owner, pond, CreateTaskRequest{Name: "feed", Action: "feeder_on"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, stranger, task.ID), core.ErrForbidden)
	assert.Len(t, repo.tasks, 1)

	require.NoError(t, svc.Delete(ctx, owner, task.ID))
	assert.Empty(t, repo.tasks)
	assert.Equal(t, access.ActionDelete, authz.calls[len(authz.calls)-1])

	require.ErrorIs(t, svc.Delete(ctx, owner, task.ID), core.ErrForbidden)
}
