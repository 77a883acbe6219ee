// AngelaMos | 2026
// handler.go

package engagement

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/recipes-api/internal/core"
	"github.com/carterperez-dev/recipes-api/internal/middleware"
)

type Handler struct {
	likes *Ledger
	saves *Ledger
}

func NewHandler(likes, saves *Ledger) *Handler {
	return &Handler{likes: likes, saves: saves}
}

// RegisterRoutes mounts like and save toggles behind authentication. A nil
// limiter leaves them unthrottled.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	limiter func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		if limiter != nil {
			r.Use(limiter)
		}

		r.Post("/posts/{postID}/like", h.add(h.likes, "postID"))
		r.Delete("/posts/{postID}/like", h.remove(h.likes, "postID"))
		r.Post("/recipes/{recipeID}/save", h.add(h.saves, "recipeID"))
		r.Delete("/recipes/{recipeID}/save", h.remove(h.saves, "recipeID"))
	})
}

func (h *Handler) add(l *Ledger, param string) http.HandlerFunc {
	rel := l.Relation()

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		targetID := chi.URLParam(r, param)

		result, count, err := l.Add(r.Context(), userID, targetID)
		if err != nil {
			writeLedgerError(w, rel, err)
			return
		}

		if result == AlreadyExists {
			core.Conflict(w, rel.TargetLabel+" already "+rel.AddedVerb)
			return
		}

		core.JSON(w, http.StatusOK, core.Response{
			Success: true,
			Message: rel.TargetLabel + " " + rel.AddedVerb + " successfully",
			Data:    toResponse(rel, targetID, count, true),
		})
	}
}

func (h *Handler) remove(l *Ledger, param string) http.HandlerFunc {
	rel := l.Relation()

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		targetID := chi.URLParam(r, param)

		result, count, err := l.Remove(r.Context(), userID, targetID)
		if err != nil {
			writeLedgerError(w, rel, err)
			return
		}

		if result == NotFound {
			core.JSONError(w, core.NewAppError(
				core.ErrNotFound,
				rel.TargetLabel+" not "+rel.AddedVerb+" by user",
				http.StatusNotFound,
				"NOT_FOUND",
			))
			return
		}

		core.JSON(w, http.StatusOK, core.Response{
			Success: true,
			Message: rel.TargetLabel + " " + rel.RemovedVerb + " successfully",
			Data:    toResponse(rel, targetID, count, false),
		})
	}
}

func writeLedgerError(w http.ResponseWriter, rel Relation, err error) {
	switch {
	case errors.Is(err, ErrTargetNotFound):
		core.NotFound(w, rel.TargetLabel)
	case errors.Is(err, ErrActorNotFound):
		core.NotFound(w, "user")
	default:
		core.InternalServerError(w, err)
	}
}
