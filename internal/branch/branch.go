// AngelaMos | 2026
// branch.go

package branch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aquasense/sonda-api/internal/core"
)

// Branch is a company or one of its branches. Users and installations that
// share a branch see each other.
type Branch struct {
	ID        string    `db:"id"         json:"id"`
	ParentID  *string   `db:"parent_id"  json:"parent_id,omitempty"`
	Name      string    `db:"name"       json:"name"`
	Kind      string    `db:"kind"       json:"kind"`
	Status    string    `db:"status"     json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Repository interface {
	List(ctx context.Context) ([]Branch, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Branch, error) {
	query := `
		SELECT id, parent_id, name, kind, status, created_at
		FROM branches
		WHERE status = 'active'
		ORDER BY name ASC`

	branches := []Branch{}
	if err := r.db.SelectContext(ctx, &branches, query); err != nil {
		return nil, fmt.Errorf("list branches: %w", core.StorageError(ctx, err))
	}

	return branches, nil
}

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.With(authenticator).Get("/branches", h.List)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	branches, err := h.repo.List(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, branches)
}
