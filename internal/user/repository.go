// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aquasense/sonda-api/internal/auth"
	"github.com/aquasense/sonda-api/internal/core"
)

type Repository interface {
	CreateWithRole(ctx context.Context, user *User, roleName string) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateName(ctx context.Context, id, name string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) (int, error)
	SetActive(ctx context.Context, id string, active bool) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	ListRoles(ctx context.Context) ([]Role, error)
}

type repository struct {
	db core.DBTX
	tx core.TxRunner
}

func NewRepository(db core.DBTX, tx core.TxRunner) Repository {
	return &repository{db: db, tx: tx}
}

const userColumns = `
	u.id, u.role_id, r.name AS role, u.branch_id, u.name, u.email,
	u.password_hash, u.active, u.token_version, u.created_at, u.updated_at`

const userFrom = `FROM users u JOIN roles r ON r.id = u.role_id`

// CreateWithRole resolves the role, checks the branch and the email, and
// inserts the user in one transaction. A failure at any step leaves no row.
func (r *repository) CreateWithRole(
	ctx context.Context,
	user *User,
	roleName string,
) error {
	return r.tx.InTx(ctx, func(tx core.DBTX) error {
		var roleID int
		err := tx.GetContext(ctx, &roleID, `SELECT id FROM roles WHERE name = $1`, roleName)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("create user: %w", auth.ErrInvalidRole)
		}
		if err != nil {
			return fmt.Errorf("resolve role: %w", core.StorageError(ctx, err))
		}

		if user.BranchID != nil {
			var exists bool
			if err := tx.GetContext(ctx, &exists,
				`SELECT EXISTS(SELECT 1 FROM branches WHERE id = $1)`,
				*user.BranchID,
			); err != nil {
				return fmt.Errorf("check branch: %w", core.StorageError(ctx, err))
			}
			if !exists {
				return fmt.Errorf("create user: %w", auth.ErrInvalidBranch)
			}
		}

		var taken bool
		if err := tx.GetContext(ctx, &taken,
			`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`,
			user.Email,
		); err != nil {
			return fmt.Errorf("check email: %w", core.StorageError(ctx, err))
		}
		if taken {
			return fmt.Errorf("create user: %w", auth.ErrEmailExists)
		}

		query := `
			INSERT INTO users (id, role_id, branch_id, name, email, password_hash)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING active, token_version, created_at, updated_at`

		var row struct {
			Active       bool      `db:"active"`
			TokenVersion int       `db:"token_version"`
			CreatedAt    time.Time `db:"created_at"`
			UpdatedAt    time.Time `db:"updated_at"`
		}
		err = tx.GetContext(ctx, &row, query,
			user.ID,
			roleID,
			user.BranchID,
			user.Name,
			user.Email,
			user.PasswordHash,
		)
		if err != nil {
			if core.IsDuplicateKeyError(err) {
				return fmt.Errorf("create user: %w", auth.ErrEmailExists)
			}
			return fmt.Errorf("create user: %w", core.StorageError(ctx, err))
		}

		user.RoleID = roleID
		user.Role = roleName
		user.Active = row.Active
		user.TokenVersion = row.TokenVersion
		user.CreatedAt = row.CreatedAt
		user.UpdatedAt = row.UpdatedAt
		return nil
	})
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` ` + userFrom + ` WHERE u.id = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", core.StorageError(ctx, err))
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `SELECT ` + userColumns + ` ` + userFrom + ` WHERE u.email = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", core.StorageError(ctx, err))
	}

	return &user, nil
}

func (r *repository) UpdateName(
	ctx context.Context,
	id, name string,
) (*User, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1`,
		id, name,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", core.StorageError(ctx, err))
	}
	if err := expectOne(result, "update user"); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		id, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", core.StorageError(ctx, err))
	}

	return expectOne(result, "update password")
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
) (int, error) {
	var version int
	err := r.db.GetContext(ctx, &version, `
		UPDATE users
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING token_version`,
		id,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("increment token version: %w", core.ErrNotFound)
	case err != nil:
		return 0, fmt.Errorf("increment token version: %w", core.StorageError(ctx, err))
	}
	return version, nil
}

// SetActive flips the active flag. Deactivation also bumps the token version.
func (r *repository) SetActive(
	ctx context.Context,
	id string,
	active bool,
) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET active = $2,
		    token_version = token_version + CASE WHEN $2 THEN 0 ELSE 1 END,
		    updated_at = NOW()
		WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("set user active: %w", core.StorageError(ctx, err))
	}

	return expectOne(result, "set user active")
}

// userFilter accumulates WHERE predicates with positional placeholders.
type userFilter struct {
	preds []string
	args  []any
}

func (f *userFilter) add(pred string, arg any) {
	f.args = append(f.args, arg)
	f.preds = append(f.preds, strings.ReplaceAll(pred, "?", fmt.Sprintf("$%d", len(f.args))))
}

func (f *userFilter) where() string {
	if len(f.preds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.preds, " AND ")
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	var f userFilter
	if params.Search != "" {
		f.add("(u.email ILIKE ? OR u.name ILIKE ?)", "%"+escapeLike(params.Search)+"%")
	}
	if params.Role != "" {
		f.add("r.name = ?", params.Role)
	}
	if params.Active != nil {
		f.add("u.active = ?", *params.Active)
	}

	var total int
	if err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) "+userFrom+f.where(), f.args...,
	); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", core.StorageError(ctx, err))
	}

	n := len(f.args)
	query := fmt.Sprintf("SELECT %s %s%s ORDER BY u.created_at DESC LIMIT $%d OFFSET $%d",
		userColumns, userFrom, f.where(), n+1, n+2)

	users := []User{}
	if err := r.db.SelectContext(ctx, &users, query,
		append(f.args, params.PageSize, params.Offset())...,
	); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", core.StorageError(ctx, err))
	}

	return users, total, nil
}

func (r *repository) ListRoles(ctx context.Context) ([]Role, error) {
	roles := []Role{}
	if err := r.db.SelectContext(ctx, &roles,
		`SELECT id, name FROM roles ORDER BY id`,
	); err != nil {
		return nil, fmt.Errorf("list roles: %w", core.StorageError(ctx, err))
	}

	return roles, nil
}

func expectOne(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
