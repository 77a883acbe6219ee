// AngelaMos | 2026
// handler.go

package user

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/recipes-api/internal/core"
	"github.com/carterperez-dev/recipes-api/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/users", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/me", h.GetMe)
		r.Get("/me/entitlement", h.GetMyEntitlement)
	})
}

// RegisterAdminRoutes registers the admin-only user lookup. Entitlement
// overrides live with the entitlement handler.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/admin/users/{userID}", h.GetUser)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadMe(w, r)
	if !ok {
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) GetMyEntitlement(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadMe(w, r)
	if !ok {
		return
	}

	core.OK(w, ToEntitlementResponse(user))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) loadMe(w http.ResponseWriter, r *http.Request) (*User, bool) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.service.GetMe(r.Context(), userID)
	switch {
	case err == nil:
		return user, true
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "authentication required")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	default:
		core.InternalServerError(w, err)
	}
	return nil, false
}
