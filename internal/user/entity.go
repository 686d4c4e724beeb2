// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/aquasense/sonda-api/internal/auth"
)

type User struct {
	ID           string    `db:"id"`
	RoleID       int       `db:"role_id"`
	Role         string    `db:"role"`
	BranchID     *string   `db:"branch_id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Active       bool      `db:"active"`
	TokenVersion int       `db:"token_version"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (u *User) IsAccountAdmin() bool {
	return u.Role == RoleAccountAdmin
}

type Role struct {
	ID   int    `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`
}

const (
	RoleOperator     = "operator"
	RoleAccountAdmin = "account-admin"
)

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		BranchID:     u.BranchID,
		Active:       u.Active,
		TokenVersion: u.TokenVersion,
	}
}
