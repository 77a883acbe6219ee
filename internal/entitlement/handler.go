// AngelaMos | 2026
// handler.go

package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/recipes-api/internal/config"
	"github.com/carterperez-dev/recipes-api/internal/core"
)

type Handler struct {
	ingestor  *Ingestor
	service   *Service
	validator *validator.Validate
	cfg       config.WebhookConfig
}

func NewHandler(
	ingestor *Ingestor,
	service *Service,
	cfg config.WebhookConfig,
) *Handler {
	return &Handler{
		ingestor:  ingestor,
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		cfg:       cfg,
	}
}

// RegisterRoutes mounts the billing webhook. It is authenticated by the
// shared secret, not by JWT.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/revenuecat", h.Webhook)
	r.Post("/revenuecat/webhook", h.Webhook)
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Put("/admin/users/{userID}/entitlement", h.Override)
		r.Get("/admin/users/{userID}/events", h.ListEvents)
	})
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeOutcome(w, Outcome{
				Status:  http.StatusRequestEntityTooLarge,
				Message: "Payload too large",
			})
			return
		}
		writeOutcome(w, Outcome{
			Status:  http.StatusBadRequest,
			Message: "Invalid payload",
		})
		return
	}

	ctx := r.Context()
	if h.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.ProcessTimeout)
		defer cancel()
	}

	writeOutcome(w, h.ingestor.Handle(ctx, r.Header.Get("Authorization"), payload))
}

func writeOutcome(w http.ResponseWriter, o Outcome) {
	if o.OK() {
		core.JSON(w, o.Status, core.Response{Success: true, Message: o.Message})
		return
	}

	code := "INTERNAL_ERROR"
	switch o.Status {
	case http.StatusForbidden:
		code = "FORBIDDEN"
	case http.StatusBadRequest:
		code = "INVALID_PAYLOAD"
	case http.StatusRequestEntityTooLarge:
		code = "PAYLOAD_TOO_LARGE"
	}

	core.JSON(w, o.Status, core.Response{
		Success: false,
		Error:   &core.ErrorBody{Code: code, Message: o.Message},
	})
}

func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	outcome, err := h.service.ApplyOverride(r.Context(), userID, Override{
		Action:       OverrideAction(req.Action),
		PackageID:    req.PackageID,
		PremiumUntil: req.PremiumUntil,
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		case errors.Is(err, core.ErrInvalidInput):
			core.BadRequest(w, err.Error())
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, ToStateResponse(userID, outcome))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	events, err := h.service.ListEvents(r.Context(), userID, limit)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, events)
}
