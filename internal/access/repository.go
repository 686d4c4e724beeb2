// AngelaMos | 2026
// repository.go

package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aquasense/sonda-api/internal/core"
)

type Repository interface {
	FactsLoader
	ListGrants(ctx context.Context, installationID string) ([]Grant, error)
	AddGrant(ctx context.Context, userID, installationID, grantedBy string) (*Grant, error)
	RemoveGrant(ctx context.Context, userID, installationID string) error
	UserActive(ctx context.Context, userID string) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// LoadFacts renders the atoms with the same SQL the list filter uses, so the
// Go evaluation sees exactly what a filtered query would.
func (r *repository) LoadFacts(
	ctx context.Context,
	userID, installationID string,
) (*Facts, error) {
	query := fmt.Sprintf(`
		SELECT i.id AS installation_id, i.creator_id, i.branch_id, i.status,
		       %s AS is_creator,
		       %s AS has_grant,
		       %s AS same_branch
		FROM installations i
		WHERE i.id = $2`,
		Creator.SQL("i", "$1"),
		Granted.SQL("i", "$1"),
		SameBranch.SQL("i", "$1"),
	)

	var facts Facts
	err := r.db.GetContext(ctx, &facts, query, userID, installationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load facts: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load facts: %w", core.StorageError(ctx, err))
	}

	return &facts, nil
}

func (r *repository) ListGrants(
	ctx context.Context,
	installationID string,
) ([]Grant, error) {
	query := `
		SELECT g.user_id, g.installation_id, g.granted_by, g.created_at,
		       u.name AS user_name, u.email AS user_email
		FROM installation_grants g
		JOIN users u ON u.id = g.user_id
		WHERE g.installation_id = $1
		ORDER BY g.created_at ASC`

	grants := []Grant{}
	if err := r.db.SelectContext(ctx, &grants, query, installationID); err != nil {
		return nil, fmt.Errorf("list grants: %w", core.StorageError(ctx, err))
	}

	return grants, nil
}

func (r *repository) AddGrant(
	ctx context.Context,
	userID, installationID, grantedBy string,
) (*Grant, error) {
	if err := InsertGrant(ctx, r.db, userID, installationID, grantedBy); err != nil {
		return nil, err
	}

	query := `
		SELECT g.user_id, g.installation_id, g.granted_by, g.created_at,
		       u.name AS user_name, u.email AS user_email
		FROM installation_grants g
		JOIN users u ON u.id = g.user_id
		WHERE g.installation_id = $1 AND g.user_id = $2`

	var grant Grant
	if err := r.db.GetContext(ctx, &grant, query, installationID, userID); err != nil {
		return nil, fmt.Errorf("read grant: %w", core.StorageError(ctx, err))
	}

	return &grant, nil
}

func (r *repository) RemoveGrant(
	ctx context.Context,
	userID, installationID string,
) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM installation_grants WHERE user_id = $1 AND installation_id = $2`,
		userID, installationID,
	)
	if err != nil {
		return fmt.Errorf("remove grant: %w", core.StorageError(ctx, err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove grant: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("remove grant: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) UserActive(ctx context.Context, userID string) (bool, error) {
	var active bool
	err := r.db.GetContext(ctx, &active, `SELECT active FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("lookup user: %w", core.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", core.StorageError(ctx, err))
	}

	return active, nil
}

// InsertGrant pairs a user with an installation. It is idempotent and runs on
// any DBTX so installation creation can call it inside its transaction.
func InsertGrant(
	ctx context.Context,
	db core.DBTX,
	userID, installationID, grantedBy string,
) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO installation_grants (user_id, installation_id, granted_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, installation_id) DO NOTHING`,
		userID, installationID, grantedBy,
	)
	if err != nil {
		return fmt.Errorf("insert grant: %w", core.StorageError(ctx, err))
	}

	return nil
}
