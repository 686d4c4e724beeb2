// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
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

// RegisterRoutes mounts /auth. The public endpoints share one rate limiter;
// optionalAuth lets an account-admin register users with elevated roles
// through the same endpoint.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, optionalAuth, limiter func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.With(limiter, optionalAuth).Post("/register", h.Register)
		r.With(limiter).Post("/login", h.Login)
		r.With(limiter).Post("/refresh", h.Refresh)

		r.With(authenticator).Post("/logout", h.Logout)
		r.With(authenticator).Post("/change-password", h.ChangePassword)
	})
}

// respond maps session errors to responses. Credential failures of any kind
// share one 401 so a caller cannot tell an unknown email from a bad password.
func respond(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountInactive):
		core.Unauthorized(w, "invalid email or password")
	case errors.Is(err, ErrEmailExists):
		core.JSONError(w, core.DuplicateError("email"))
	case errors.Is(err, ErrInvalidRole):
		core.BadRequest(w, "role does not exist")
	case errors.Is(err, ErrInvalidBranch):
		core.BadRequest(w, "branch does not exist")
	case errors.Is(err, ErrTokenReuse):
		core.JSONError(w, core.TokenError(core.ErrTokenRevoked))
	case core.IsTokenError(err):
		slog.DebugContext(r.Context(), "token rejected", "error", err)
		core.JSONError(w, core.TokenError(err))
	default:
		core.HandleServiceError(w, err, "session")
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), RegisterInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		BranchID:  req.BranchID,
		ActorRole: middleware.GetUserRole(r.Context()),
	}, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		if errors.Is(err, core.ErrForbidden) {
			core.Forbidden(w, "role cannot be self-assigned")
			return
		}
		respond(w, r, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		respond(w, r, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		respond(w, r, err)
		return
	}

	core.OK(w, resp)
}

// Logout revokes the caller's access token. A refresh token in the body,
// which is optional, ends that session too.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			core.BadRequest(w, "invalid request body")
			return
		}
	}

	err := h.service.Logout(r.Context(), middleware.GetClaims(r.Context()), req.RefreshToken)
	if errors.Is(err, core.ErrForbidden) {
		core.Forbidden(w, "cannot revoke another user's session")
		return
	}
	if err != nil {
		respond(w, r, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !core.Bind(w, r, h.validator, &req) {
		return
	}

	err := h.service.ChangePassword(
		r.Context(),
		middleware.GetClaims(r.Context()),
		req.CurrentPassword,
		req.NewPassword,
	)
	if errors.Is(err, ErrInvalidCredentials) {
		core.Unauthorized(w, "current password is incorrect")
		return
	}
	if err != nil {
		respond(w, r, err)
		return
	}

	core.NoContent(w)
}
