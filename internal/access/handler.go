// AngelaMos | 2026
// handler.go

package access

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquasense/sonda-api/internal/core"
	"github.com/aquasense/sonda-api/internal/middleware"
)

type GrantRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/installations/{installationID}/grants", h.ListGrants)
		r.Post("/installations/{installationID}/grants", h.GrantAccess)
		r.Delete("/installations/{installationID}/grants/{userID}", h.RevokeAccess)
	})
}

func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.service.ListGrants(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
	)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.OK(w, grants)
}

func (h *Handler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	grant, err := h.service.GrantAccess(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
		req.UserID,
	)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.Created(w, grant)
}

func (h *Handler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	err := h.service.RevokeAccess(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
		chi.URLParam(r, "userID"),
	)
	if err != nil {
		core.HandleServiceError(w, err, "grant")
		return
	}

	core.NoContent(w)
}
