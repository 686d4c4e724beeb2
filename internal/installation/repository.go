// AngelaMos | 2026
// repository.go

package installation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aquasense/sonda-api/internal/access"
	"github.com/aquasense/sonda-api/internal/core"
)

type Repository interface {
	List(ctx context.Context, userID, filter string) ([]Installation, error)
	Create(ctx context.Context, inst *Installation) error
	GetByID(ctx context.Context, id string) (*Installation, error)
	Update(ctx context.Context, inst *Installation) error
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	UserBranch(ctx context.Context, userID string) (*string, error)
}

type repository struct {
	db core.DBTX
	tx core.TxRunner
}

func NewRepository(db core.DBTX, tx core.TxRunner) Repository {
	return &repository{db: db, tx: tx}
}

const installationColumns = `
	i.id, i.creator_id, i.branch_id, i.name, i.description, i.status,
	i.usage, i.installed_at, i.created_at, i.updated_at`

// List returns the live installations matching filter, a SQL condition over
// alias i with the caller bound to $1.
func (r *repository) List(
	ctx context.Context,
	userID, filter string,
) ([]Installation, error) {
	query := `
		SELECT ` + installationColumns + `
		FROM installations i
		WHERE i.status <> 'deleted' AND ` + filter + `
		ORDER BY i.name ASC, i.id ASC`

	items := []Installation{}
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list installations: %w", core.StorageError(ctx, err))
	}

	return items, nil
}

// Create inserts the installation and the creator's grant atomically.
func (r *repository) Create(ctx context.Context, inst *Installation) error {
	return r.tx.InTx(ctx, func(tx core.DBTX) error {
		query := `
			INSERT INTO installations (
				id, creator_id, branch_id, name, description, status, usage, installed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at`

		err := tx.QueryRowxContext(ctx, query,
			inst.ID,
			inst.CreatorID,
			inst.BranchID,
			inst.Name,
			inst.Description,
			inst.Status,
			inst.Usage,
			inst.InstalledAt,
		).Scan(&inst.CreatedAt, &inst.UpdatedAt)
		if err != nil {
			if core.IsForeignKeyError(err) {
				return fmt.Errorf(
					"create installation: branch does not exist: %w",
					core.ErrInvalidInput,
				)
			}
			return fmt.Errorf("create installation: %w", core.StorageError(ctx, err))
		}

		return access.InsertGrant(ctx, tx, inst.CreatorID, inst.ID, inst.CreatorID)
	})
}

func (r *repository) GetByID(ctx context.Context, id string) (*Installation, error) {
	query := `SELECT ` + installationColumns + ` FROM installations i WHERE i.id = $1`

	var inst Installation
	err := r.db.GetContext(ctx, &inst, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get installation: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get installation: %w", core.StorageError(ctx, err))
	}

	return &inst, nil
}

func (r *repository) Update(ctx context.Context, inst *Installation) error {
	query := `
		UPDATE installations
		SET name = $2, description = $3, usage = $4, status = $5, updated_at = NOW()
		WHERE id = $1 AND status <> 'deleted'
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &inst.UpdatedAt, query,
		inst.ID,
		inst.Name,
		inst.Description,
		inst.Usage,
		inst.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update installation: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update installation: %w", core.StorageError(ctx, err))
	}

	return nil
}

// SoftDelete flips the status once. A second call finds no live row.
func (r *repository) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE installations
		SET status = 'deleted', updated_at = NOW()
		WHERE id = $1 AND status <> 'deleted'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete installation: %w", core.StorageError(ctx, err))
	}

	return expectOne(result, "delete installation", core.ErrNotFound)
}

func (r *repository) Restore(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE installations
		SET status = 'active', updated_at = NOW()
		WHERE id = $1 AND status = 'deleted'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("restore installation: %w", core.StorageError(ctx, err))
	}

	return expectOne(result, "restore installation", core.ErrConflict)
}

func (r *repository) UserBranch(ctx context.Context, userID string) (*string, error) {
	var branchID *string
	err := r.db.GetContext(ctx, &branchID, `SELECT branch_id FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user branch: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("user branch: %w", core.StorageError(ctx, err))
	}

	return branchID, nil
}

func expectOne(result sql.Result, op string, none error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, none)
	}

	return nil
}
