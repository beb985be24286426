// Package handler exposes the revocation pipeline over HTTP.
package handler

import (
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"consentry/internal/enrichment"
	"consentry/internal/revocation/models"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/platform/middleware"
)

//go:generate mockgen -source=handler.go -destination=mocks/revocation_mocks.go -package=mocks

//go:embed revocation.schema.json
var revocationSchema string

// maxBodyBytes caps request bodies; revocation payloads are small.
const maxBodyBytes = 1 << 20

// Service defines the interface for revocation pipeline operations.
type Service interface {
	Submit(ctx context.Context, req models.SubmitRequest) (*models.SubmitResponse, error)
	ListAuditByOrg(ctx context.Context, orgID string) ([]models.AuditLogEntry, error)
}

// Handler handles revocation and audit trail endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
	schema  *jsonschema.Schema
}

// New creates a revocation Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		schema:  jsonschema.MustCompileString("revocation.schema.json", revocationSchema),
	}
}

// Register registers the revocation routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.With(middleware.ContentTypeJSON).Post("/revocations", h.handleSubmit)
	r.Get("/organizations/{orgID}/logs", h.handleOrgLogs)
}

// submitBody mirrors models.SubmitRequest but coerces a bare string "fields"
// value to a one-element list, matching what clients historically sent.
type submitBody struct {
	UserID  string               `json:"userId"`
	OrgID   string               `json:"orgId"`
	Purpose string               `json:"purpose"`
	Fields  enrichment.FieldList `json:"fields"`
}

// handleSubmit accepts a revocation, acknowledges with 201 once the
// revocation and its pending audit entry are durable, and leaves enrichment
// to run in the background.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable request body"))
		return
	}

	var loose any
	if err := json.Unmarshal(raw, &loose); err != nil {
		h.logger.WarnContext(ctx, "malformed revocation request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body must be valid JSON"))
		return
	}
	if err := h.schema.Validate(loose); err != nil {
		h.logger.WarnContext(ctx, "invalid revocation request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "userId, orgId, purpose and fields are required"))
		return
	}

	var body submitBody
	if err := json.Unmarshal(raw, &body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	resp, err := h.service.Submit(ctx, models.SubmitRequest{
		UserID:  body.UserID,
		OrgID:   body.OrgID,
		Purpose: body.Purpose,
		Fields:  []string(body.Fields),
	})
	if err != nil {
		if dErrors.Is(err, dErrors.CodeBadRequest) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to record revocation",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// handleOrgLogs returns the audit trail for an organization, newest first.
func (h *Handler) handleOrgLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "organization id is required"))
		return
	}

	entries, err := h.service.ListAuditByOrg(ctx, orgID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit entries",
			"request_id", middleware.GetRequestID(ctx),
			"org_id", orgID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, entries)
}
