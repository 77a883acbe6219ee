// AngelaMos | 2026
// handler.go

package premium

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/recipes-api/internal/core"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/premium/packages", h.ListPackages)
}

func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.service.ListActive(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToPackageResponseList(pkgs))
}
