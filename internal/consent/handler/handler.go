// Package handler exposes the consent read-side endpoints.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentry/internal/consent/models"
	"consentry/internal/consent/store"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/platform/middleware"
)

// Handler handles consent lookup endpoints.
type Handler struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a consent Handler.
func New(st store.Store, logger *slog.Logger) *Handler {
	return &Handler{store: st, logger: logger}
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/users/{userID}/consents", h.handleListConsents)
}

// handleListConsents returns every consent record for a user, including
// revoked ones, so the user sees the full history.
func (h *Handler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	records, err := h.store.ListByUser(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list consents",
			"request_id", middleware.GetRequestID(ctx),
			"user_id", userID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodePersistence, "list consents"))
		return
	}
	if records == nil {
		records = []models.ConsentRecord{}
	}

	httputil.WriteJSON(w, http.StatusOK, records)
}
