// AngelaMos | 2026
// repository.go

package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aquasense/sonda-api/internal/core"
)

type Repository interface {
	ListByInstallation(ctx context.Context, installationID string) ([]Task, error)
	GetByID(ctx context.Context, id string) (*Task, error)
	Create(ctx context.Context, t *Task) error
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const taskColumns = `
	id, installation_id, name, kind, window_start, window_end,
	threshold_min, threshold_max, action, enabled, status, completed_at,
	created_at, updated_at`

func (r *repository) ListByInstallation(
	ctx context.Context,
	installationID string,
) ([]Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE installation_id = $1
		ORDER BY COALESCE(window_start, created_at) ASC, name ASC`

	tasks := []Task{}
	if err := r.db.SelectContext(ctx, &tasks, query, installationID); err != nil {
		return nil, fmt.Errorf("list tasks: %w", core.StorageError(ctx, err))
	}

	return tasks, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	var t Task
	err := r.db.GetContext(ctx, &t, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", core.StorageError(ctx, err))
	}

	return &t, nil
}

func (r *repository) Create(ctx context.Context, t *Task) error {
	query := `
		INSERT INTO tasks (
			id, installation_id, name, kind, window_start, window_end,
			threshold_min, threshold_max, action, enabled, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		t.ID,
		t.InstallationID,
		t.Name,
		t.Kind,
		t.WindowStart,
		t.WindowEnd,
		t.ThresholdMin,
		t.ThresholdMax,
		t.Action,
		t.Enabled,
		t.Status,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", core.StorageError(ctx, err))
	}

	return nil
}

func (r *repository) Update(ctx context.Context, t *Task) error {
	query := `
		UPDATE tasks
		SET name = $2, kind = $3, window_start = $4, window_end = $5,
		    threshold_min = $6, threshold_max = $7, action = $8, enabled = $9,
		    status = $10, completed_at = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &t.UpdatedAt, query,
		t.ID,
		t.Name,
		t.Kind,
		t.WindowStart,
		t.WindowEnd,
		t.ThresholdMin,
		t.ThresholdMax,
		t.Action,
		t.Enabled,
		t.Status,
		t.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update task: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update task: %w", core.StorageError(ctx, err))
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", core.StorageError(ctx, err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete task: %w", core.ErrNotFound)
	}

	return nil
}
