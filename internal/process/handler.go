// AngelaMos | 2026
// handler.go

package process

import (
	"net/http"

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

		r.Get("/species", h.ListSpecies)
		r.Get("/installations/{installationID}/processes", h.List)
		r.Post("/installations/{installationID}/processes", h.Create)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
	)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.OK(w, ToProcessResponseList(items))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProcessRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	p, err := h.service.Create(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
		req,
	)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.Created(w, ToProcessResponse(p))
}

func (h *Handler) ListSpecies(w http.ResponseWriter, r *http.Request) {
	species, err := h.service.ListSpecies(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, species)
}
