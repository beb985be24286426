// Package handler exposes the admin surface: login and the cross-organization
// audit feed.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentry/internal/revocation/models"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/platform/middleware"
	"consentry/pkg/platform/middleware/auth"
	"consentry/pkg/platform/secrets"
)

// defaultAuditLimit bounds the admin audit feed.
const defaultAuditLimit = 100

// AuditLister provides the recent audit entries across all organizations.
type AuditLister interface {
	ListRecentAudit(ctx context.Context, limit int) ([]models.AuditLogEntry, error)
}

// Handler handles admin endpoints.
type Handler struct {
	audit        AuditLister
	tokens       *auth.Manager
	logger       *slog.Logger
	username     string
	passwordHash string
}

// New creates an admin Handler. The configured password is hashed once here;
// the plaintext is not retained.
func New(audit AuditLister, tokens *auth.Manager, logger *slog.Logger, username, password string) (*Handler, error) {
	hash, err := secrets.Hash(password)
	if err != nil {
		return nil, err
	}
	return &Handler{
		audit:        audit,
		tokens:       tokens,
		logger:       logger,
		username:     username,
		passwordHash: hash,
	}, nil
}

// Register registers the admin routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/login", h.handleLogin)
	r.With(auth.RequireAdmin(h.tokens, h.logger)).Get("/admin/audit", h.handleAuditFeed)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if req.Username != h.username {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))
		return
	}
	if err := secrets.Verify(req.Password, h.passwordHash); err != nil {
		h.logger.WarnContext(ctx, "admin login rejected",
			"request_id", middleware.GetRequestID(ctx),
			"username", req.Username,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))
		return
	}

	token, err := h.tokens.IssueAdminToken(req.Username)
	if err != nil {
		h.logger.ErrorContext(ctx, "admin token issue failed", "error", err.Error())
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "could not issue token"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (h *Handler) handleAuditFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.audit.ListRecentAudit(ctx, defaultAuditLimit)
	if err != nil {
		h.logger.ErrorContext(ctx, "admin audit feed failed",
			"request_id", middleware.GetRequestID(ctx),
			"admin", auth.GetAdminSubject(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []models.AuditLogEntry{}
	}

	httputil.WriteJSON(w, http.StatusOK, entries)
}
