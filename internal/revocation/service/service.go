// Package service orchestrates the revocation pipeline: validate, write the
// revocation and its pending audit entry atomically, acknowledge, then enrich
// asynchronously and notify subscribers.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"consentry/internal/enrichment"
	"consentry/internal/events"
	"consentry/internal/platform/metrics"
	"consentry/internal/revocation/models"
	"consentry/internal/revocation/store"
	dErrors "consentry/pkg/domain-errors"
)

// Generator produces the compliance narrative for a revocation. It never
// fails; exhausted external calls resolve to the deterministic fallback.
type Generator interface {
	Generate(ctx context.Context, ev enrichment.Event, opts enrichment.Options) enrichment.Payload
}

// Service is the revocation pipeline. Safe for concurrent use; every
// submission gets its own enrichment goroutine.
type Service struct {
	store   store.Store
	gen     Generator
	pub     events.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	opts    enrichment.Options

	wg sync.WaitGroup
}

// New wires the pipeline. metrics may be nil.
func New(st store.Store, gen Generator, pub events.Publisher, logger *slog.Logger, m *metrics.Metrics, opts enrichment.Options) *Service {
	return &Service{
		store:   st,
		gen:     gen,
		pub:     pub,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("consentry/revocation"),
		opts:    opts,
	}
}

// Submit validates and durably records a revocation together with its pending
// audit entry, then schedules enrichment. The response is based solely on the
// durable write; enrichment failures are invisible to the caller.
func (s *Service) Submit(ctx context.Context, req models.SubmitRequest) (*models.SubmitResponse, error) {
	ctx, span := s.tracer.Start(ctx, "revocation.submit")
	defer span.End()

	if err := validate(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rev := &models.Revocation{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		OrgID:       req.OrgID,
		Purpose:     req.Purpose,
		Fields:      req.Fields,
		RequestedAt: now,
		Status:      models.RevocationPending,
	}
	entry := &models.AuditLogEntry{
		ID:              uuid.NewString(),
		RevocationID:    rev.ID,
		OrgID:           rev.OrgID,
		UserID:          rev.UserID,
		AuditText:       models.PlaceholderNarrative,
		Recommendation:  []string{},
		LegalReferences: []string{models.BaselineLegalReference},
		Status:          models.AuditPending,
		GeneratedAt:     now,
		Signature:       models.PlaceholderSignature,
	}

	err := s.store.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateRevocation(txCtx, rev); err != nil {
			return err
		}
		return s.store.CreateAuditEntry(txCtx, entry)
	})
	if err != nil {
		// No partial state, no broadcast, no enrichment.
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "record revocation")
	}

	if s.metrics != nil {
		s.metrics.RevocationsCreated.Inc()
	}
	span.SetAttributes(
		attribute.String("revocation.id", rev.ID),
		attribute.String("revocation.purpose", rev.Purpose),
	)

	s.wg.Add(1)
	go s.enrich(*rev, entry.ID)

	return &models.SubmitResponse{RevocationID: rev.ID, AuditID: entry.ID}, nil
}

func validate(req models.SubmitRequest) error {
	switch {
	case req.UserID == "":
		return dErrors.New(dErrors.CodeBadRequest, "userId is required")
	case req.OrgID == "":
		return dErrors.New(dErrors.CodeBadRequest, "orgId is required")
	case req.Purpose == "":
		return dErrors.New(dErrors.CodeBadRequest, "purpose is required")
	case len(req.Fields) == 0:
		return dErrors.New(dErrors.CodeBadRequest, "fields must not be empty")
	}
	return nil
}

// enrich runs detached from the request context: the HTTP response has
// already been sent. Its runtime is bounded by the generator's timeout and
// retry budget, so shutdown waits for it rather than cancelling.
func (s *Service) enrich(rev models.Revocation, auditID string) {
	defer s.wg.Done()

	ctx, span := s.tracer.Start(context.Background(), "revocation.enrich",
		trace.WithAttributes(attribute.String("revocation.id", rev.ID)),
	)
	defer span.End()

	// Notification runs after the acknowledgment, never before it.
	s.pub.Publish(ctx, events.Event{
		Type: events.TypeRevocationCreated,
		Payload: map[string]any{
			"revocationId": rev.ID,
			"auditId":      auditID,
			"userId":       rev.UserID,
			"orgId":        rev.OrgID,
			"purpose":      rev.Purpose,
			"status":       rev.Status,
			"timestamp":    rev.RequestedAt,
		},
	})

	start := time.Now()
	payload := s.gen.Generate(ctx, enrichment.Event{
		ID:          rev.ID,
		UserID:      rev.UserID,
		OrgID:       rev.OrgID,
		Purpose:     rev.Purpose,
		Fields:      enrichment.FieldList(rev.Fields),
		RequestedAt: rev.RequestedAt,
	}, s.opts)

	err := s.store.CompleteAuditEntry(ctx, models.CompleteAuditParams{
		AuditID:         auditID,
		AuditText:       payload.AuditText,
		Recommendation:  payload.Recommendation,
		LegalReferences: payload.LegalReferences,
		Signature:       payload.Signature,
		Source:          string(payload.Source),
		Attempt:         payload.Attempt,
		GeneratedAt:     payload.GeneratedAt,
	})
	if errors.Is(err, store.ErrAlreadyCompleted) {
		s.logger.WarnContext(ctx, "audit entry completed twice, keeping first completion",
			"audit_id", auditID,
		)
		return
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "audit completion failed",
			"audit_id", auditID,
			"revocation_id", rev.ID,
			"error", err,
		)
		if ferr := s.store.UpdateRevocationStatus(ctx, rev.ID, models.RevocationFailed); ferr != nil {
			s.logger.ErrorContext(ctx, "revocation status update failed", "revocation_id", rev.ID, "error", ferr)
		}
		return
	}

	if err := s.store.UpdateRevocationStatus(ctx, rev.ID, models.RevocationProcessed); err != nil {
		s.logger.ErrorContext(ctx, "revocation status update failed", "revocation_id", rev.ID, "error", err)
	}

	entry, err := s.store.GetAuditEntry(ctx, auditID)
	if err != nil {
		s.logger.ErrorContext(ctx, "completed audit entry read-back failed", "audit_id", auditID, "error", err)
		return
	}

	if s.metrics != nil {
		s.metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())
	}
	s.logger.InfoContext(ctx, "audit entry enriched",
		"audit_id", auditID,
		"revocation_id", rev.ID,
		"source", payload.Source,
		"attempt", payload.Attempt,
	)

	s.pub.Publish(ctx, events.Event{Type: events.TypeAnalysisCompleted, Payload: entry})
}

// ListAuditByOrg returns the audit trail for an organization.
func (s *Service) ListAuditByOrg(ctx context.Context, orgID string) ([]models.AuditLogEntry, error) {
	entries, err := s.store.ListAuditByOrg(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "list audit entries")
	}
	return entries, nil
}

// ListRecentAudit returns the most recent audit entries across organizations.
func (s *Service) ListRecentAudit(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	entries, err := s.store.ListRecentAudit(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "list recent audit entries")
	}
	return entries, nil
}

// Close waits for in-flight enrichment tasks, up to the context deadline.
func (s *Service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
