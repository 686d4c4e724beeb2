// AngelaMos | 2026
// handler.go

package task

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

		r.Get("/installations/{installationID}/tasks", h.List)
		r.Post("/installations/{installationID}/tasks", h.Create)
		r.Patch("/tasks/{taskID}", h.Update)
		r.Delete("/tasks/{taskID}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.List(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
	)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.OK(w, tasks)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	t, err := h.service.Create(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "installationID"),
		req,
	)
	if err != nil {
		core.HandleServiceError(w, err, "installation")
		return
	}

	core.Created(w, t)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	t, err := h.service.Update(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "taskID"),
		req,
	)
	if err != nil {
		core.HandleServiceError(w, err, "task")
		return
	}

	core.OK(w, t)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "taskID"),
	)
	if err != nil {
		core.HandleServiceError(w, err, "task")
		return
	}

	core.NoContent(w)
}
