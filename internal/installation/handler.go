// AngelaMos | 2026
// handler.go

package installation

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquasense/sonda-api/internal/core"
	"github.com/aquasense/sonda-api/internal/middleware"
)

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

		r.Get("/installations", h.List)
		r.Post("/installations", h.Create)
		r.Get("/installations/{installationID}", h.Get)
		r.Patch("/installations/{installationID}", h.Update)
		r.Delete("/installations/{installationID}", h.Delete)
		r.Post("/installations/{installationID}/restore", h.Restore)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToInstallationResponseList(items))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInstallationRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	in := CreateInput{
		UserID:      middleware.GetUserID(r.Context()),
		ActorRole:   middleware.GetUserRole(r.Context()),
		Name:        req.Name,
		Description: req.Description,
		BranchID:    req.BranchID,
		Usage:       req.Usage,
	}
	if req.InstalledAt != nil {
		installedAt, err := time.Parse(dateLayout, *req.InstalledAt)
		if err != nil {
			core.BadRequest(w, "installed_at must be a date (YYYY-MM-DD)")
			return
		}
		in.InstalledAt = &installedAt
	}

	inst, err := h.service.Create(r.Context(), in)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.Created(w, ToInstallationResponse(inst))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	inst, err := h.service.Get(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
	)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.OK(w, ToInstallationResponse(inst))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateInstallationRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	inst, err := h.service.Update(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
		req,
	)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.OK(w, ToInstallationResponse(inst))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
	)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.NoContent(w)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	inst, err := h.service.Restore(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
	)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.OK(w, ToInstallationResponse(inst))
}
