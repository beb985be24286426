// Package store persists revocations and their paired audit log entries.
// Two implementations exist: Postgres for production and an in-memory store
// for tests and dependency-free development.
package store

import (
	"context"
	"errors"

	"consentry/internal/revocation/models"
)

// ErrNotFound is returned when a revocation or audit entry does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyCompleted is returned when a completing mutation targets an audit
// entry that has already been completed. At most one completion per entry.
var ErrAlreadyCompleted = errors.New("audit entry already completed")

// Store is the durable persistence boundary for the revocation pipeline.
type Store interface {
	CreateRevocation(ctx context.Context, rev *models.Revocation) error
	UpdateRevocationStatus(ctx context.Context, id string, status models.RevocationStatus) error
	GetRevocation(ctx context.Context, id string) (*models.Revocation, error)

	CreateAuditEntry(ctx context.Context, entry *models.AuditLogEntry) error
	CompleteAuditEntry(ctx context.Context, params models.CompleteAuditParams) error
	GetAuditEntry(ctx context.Context, id string) (*models.AuditLogEntry, error)
	ListAuditByOrg(ctx context.Context, orgID string) ([]models.AuditLogEntry, error)
	ListRecentAudit(ctx context.Context, limit int) ([]models.AuditLogEntry, error)

	// RunInTx executes fn atomically. Store calls made with the context passed
	// to fn participate in the same transaction; if fn returns an error nothing
	// becomes visible.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
