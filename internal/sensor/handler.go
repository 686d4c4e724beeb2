// AngelaMos | 2026
// handler.go

package sensor

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

		r.Get("/sensor-types", h.ListTypes)
		r.Get("/installations/{installationID}/sensors", h.List)
		r.Post("/installations/{installationID}/sensors", h.Create)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sensors, err := h.service.List(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
	)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.OK(w, sensors)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSensorRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	sensor, err := h.service.Create(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
		req,
	)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.Created(w, sensor)
}

func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListTypes(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, types)
}
