// AngelaMos | 2026
// handler.go

package user

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquasense/sonda-api/internal/core"
	"github.com/aquasense/sonda-api/internal/middleware"
)

// SessionRevoker ends every refresh session of a user.
type SessionRevoker interface {
	RevokeAllSessions(ctx context.Context, userID string) error
}

type Handler struct {
	service   *Service
	sessions  SessionRevoker
	validator *validator.Validate
}

func NewHandler(service *Service, sessions SessionRevoker) *Handler {
	return &Handler{
		service:   service,
		sessions:  sessions,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Get("/roles", h.ListRoles)

	r.Route("/users", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/me", h.GetMe)
		r.Put("/me", h.UpdateMe)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.ListUsers)
		r.Post("/{userID}/deactivate", h.Deactivate)
		r.Post("/{userID}/activate", h.Activate)
	})
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, roles)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.service.GetMe(r.Context(), userID)
	if err != nil {
		core.HandleServiceError(w, err, "user")
		return
	}

	core.OK(w, user.Profile())
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UpdateUserRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	user, err := h.service.UpdateMe(r.Context(), userID, req)
	if err != nil {
		core.HandleServiceError(w, err, "user")
		return
	}

	core.OK(w, user.Profile())
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := ParseListUsersParams(r.URL.Query())

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.HandleServiceError(w, err, "user")
		return
	}

	core.Paginated(w, profiles(users), params.Page, params.PageSize, total)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	actorID := middleware.GetUserID(r.Context())
	targetID := chi.URLParam(r, "userID")

	user, err := h.service.SetActive(r.Context(), actorID, targetID, active)
	if err != nil {
		core.HandleServiceError(w, err, "user")
		return
	}

	if !active && h.sessions != nil {
		if err := h.sessions.RevokeAllSessions(r.Context(), targetID); err != nil {
			slog.WarnContext(r.Context(), "revoke sessions of deactivated user",
				"user_id", targetID,
				"error", err,
			)
		}
	}

	core.OK(w, user.Profile())
}
