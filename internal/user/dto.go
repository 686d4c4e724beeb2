// AngelaMos | 2026
// dto.go

package user

import (
	"net/url"
	"strconv"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type UpdateUserRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
}

// Profile is the public shape of a user. The password hash and token version
// never leave the package.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	BranchID  *string   `json:"branch_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		BranchID:  u.BranchID,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func profiles(users []User) []Profile {
	out := make([]Profile, len(users))
	for i := range users {
		out[i] = users[i].Profile()
	}
	return out
}

// ListUsersParams filters the account-admin user listing. Page is 1-based.
type ListUsersParams struct {
	Page     int
	PageSize int
	Search   string
	Role     string
	Active   *bool
}

// ParseListUsersParams reads page, page_size, search, role and active from a
// query string. Unparseable numbers fall back to the defaults.
func ParseListUsersParams(q url.Values) ListUsersParams {
	p := ListUsersParams{
		Page:     atoiOr(q.Get("page"), 1),
		PageSize: atoiOr(q.Get("page_size"), defaultPageSize),
		Search:   q.Get("search"),
		Role:     q.Get("role"),
	}
	if active, err := strconv.ParseBool(q.Get("active")); err == nil {
		p.Active = &active
	}
	p.Normalize()
	return p
}

func atoiOr(raw string, fallback int) int {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return fallback
}

// Normalize clamps Page to at least 1 and PageSize to [1, maxPageSize].
func (p *ListUsersParams) Normalize() {
	p.Page = max(p.Page, 1)
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	p.PageSize = min(p.PageSize, maxPageSize)
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}
