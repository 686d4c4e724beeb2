// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aquasense/sonda-api/internal/core"
)

// Repository stores refresh sessions. Rows are never deleted; a session ends
// by being rotated or revoked.
type Repository interface {
	Insert(ctx context.Context, session *Session) error
	ByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	MarkRotated(ctx context.Context, id, replacedByID string) error
	Revoke(ctx context.Context, id string) error
	RevokeFamily(ctx context.Context, familyID string) error
	RevokeUser(ctx context.Context, userID string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, s *Session) error {
	err := r.db.GetContext(ctx, &s.CreatedAt, `
		INSERT INTO sessions (id, user_id, token_hash, family_id, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		s.ID, s.UserID, s.TokenHash, s.FamilyID, s.ExpiresAt, s.UserAgent, s.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", core.StorageError(ctx, err))
	}
	return nil
}

func (r *repository) ByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	var s Session
	err := r.db.GetContext(ctx, &s, `
		SELECT id, user_id, token_hash, family_id, expires_at, created_at,
		       is_used, used_at, revoked_at, replaced_by_id, user_agent, ip_address
		FROM sessions
		WHERE token_hash = $1`, tokenHash)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("session by hash: %w", core.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("session by hash: %w", core.StorageError(ctx, err))
	}
	return &s, nil
}

// MarkRotated fails with ErrNotFound when the session was already rotated,
// which is how a concurrent refresh of the same token loses the race.
func (r *repository) MarkRotated(ctx context.Context, id, replacedByID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET is_used = true, used_at = NOW(), replaced_by_id = $2
		WHERE id = $1 AND NOT is_used`, id, replacedByID)
	if err != nil {
		return fmt.Errorf("rotate session: %w", core.StorageError(ctx, err))
	}

	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return fmt.Errorf("rotate session %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *repository) Revoke(ctx context.Context, id string) error {
	n, err := r.revoke(ctx, "id", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("revoke session %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *repository) RevokeFamily(ctx context.Context, familyID string) error {
	_, err := r.revoke(ctx, "family_id", familyID)
	return err
}

func (r *repository) RevokeUser(ctx context.Context, userID string) error {
	_, err := r.revoke(ctx, "user_id", userID)
	return err
}

// revoke stamps revoked_at on every live session matching column. column is
// always one of the constants above, never caller input.
func (r *repository) revoke(ctx context.Context, column, value string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = NOW() WHERE "+column+" = $1 AND revoked_at IS NULL",
		value,
	)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions by %s: %w", column, core.StorageError(ctx, err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke sessions by %s: %w", column, err)
	}
	return n, nil
}
