package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"consentry/internal/revocation/models"
	txcontext "consentry/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// Postgres implements Store on top of database/sql with the pgx driver.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx runs fn inside a single database transaction. The transaction is
// stored in the context handed to fn so nested store calls join it.
func (s *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Postgres) CreateRevocation(ctx context.Context, rev *models.Revocation) error {
	fields, err := json.Marshal(rev.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	query := `
		INSERT INTO revocations (id, user_id, org_id, purpose, fields, requested_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		rev.ID, rev.UserID, rev.OrgID, rev.Purpose, fields, rev.RequestedAt, string(rev.Status),
	)
	if err != nil {
		return fmt.Errorf("insert revocation: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateRevocationStatus(ctx context.Context, id string, status models.RevocationStatus) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE revocations SET status = $2 WHERE id = $1`, id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update revocation status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update revocation status rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) GetRevocation(ctx context.Context, id string) (*models.Revocation, error) {
	query := `
		SELECT id, user_id, org_id, purpose, fields, requested_at, status
		FROM revocations
		WHERE id = $1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, id)

	var rev models.Revocation
	var fields []byte
	var status string
	err := row.Scan(&rev.ID, &rev.UserID, &rev.OrgID, &rev.Purpose, &fields, &rev.RequestedAt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan revocation: %w", err)
	}
	if err := json.Unmarshal(fields, &rev.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	rev.Status = models.RevocationStatus(status)
	return &rev, nil
}

func (s *Postgres) CreateAuditEntry(ctx context.Context, entry *models.AuditLogEntry) error {
	recommendation, err := json.Marshal(entry.Recommendation)
	if err != nil {
		return fmt.Errorf("marshal recommendation: %w", err)
	}
	legalRefs, err := json.Marshal(entry.LegalReferences)
	if err != nil {
		return fmt.Errorf("marshal legal references: %w", err)
	}

	query := `
		INSERT INTO audit_logs (
			id, revocation_id, org_id, user_id, audit_text,
			recommendation, legal_references, status, generated_at,
			signature, source, attempt
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		entry.ID, entry.RevocationID, entry.OrgID, entry.UserID, entry.AuditText,
		recommendation, legalRefs, string(entry.Status), entry.GeneratedAt,
		entry.Signature, entry.Source, entry.Attempt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// CompleteAuditEntry applies the single completing mutation. The status guard
// in the WHERE clause enforces at-most-once completion under concurrency.
func (s *Postgres) CompleteAuditEntry(ctx context.Context, params models.CompleteAuditParams) error {
	recommendation, err := json.Marshal(params.Recommendation)
	if err != nil {
		return fmt.Errorf("marshal recommendation: %w", err)
	}
	legalRefs, err := json.Marshal(params.LegalReferences)
	if err != nil {
		return fmt.Errorf("marshal legal references: %w", err)
	}

	query := `
		UPDATE audit_logs
		SET audit_text = $2,
		    recommendation = $3,
		    legal_references = $4,
		    signature = $5,
		    source = $6,
		    attempt = $7,
		    generated_at = $8,
		    status = $9
		WHERE id = $1 AND status = $10
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		params.AuditID, params.AuditText, recommendation, legalRefs,
		params.Signature, params.Source, params.Attempt, params.GeneratedAt,
		string(models.AuditCompleted), string(models.AuditPending),
	)
	if err != nil {
		return fmt.Errorf("complete audit entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete audit entry rows: %w", err)
	}
	if n == 0 {
		// Either missing or already completed; disambiguate for callers.
		if _, getErr := s.GetAuditEntry(ctx, params.AuditID); getErr != nil {
			return getErr
		}
		return ErrAlreadyCompleted
	}
	return nil
}

func (s *Postgres) GetAuditEntry(ctx context.Context, id string) (*models.AuditLogEntry, error) {
	query := auditSelect + ` WHERE id = $1`
	rows, err := s.execer(ctx).QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query audit entry: %w", err)
	}
	defer rows.Close()

	entries, err := scanAuditEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

func (s *Postgres) ListAuditByOrg(ctx context.Context, orgID string) ([]models.AuditLogEntry, error) {
	query := auditSelect + ` WHERE org_id = $1 ORDER BY generated_at DESC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

func (s *Postgres) ListRecentAudit(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	query := auditSelect + ` ORDER BY generated_at DESC LIMIT $1`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

const auditSelect = `
	SELECT id, revocation_id, org_id, user_id, audit_text,
	       recommendation, legal_references, status, generated_at,
	       signature, source, attempt
	FROM audit_logs
`

func scanAuditEntries(rows *sql.Rows) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	for rows.Next() {
		var (
			entry          models.AuditLogEntry
			recommendation []byte
			legalRefs      []byte
			status         string
		)
		err := rows.Scan(
			&entry.ID, &entry.RevocationID, &entry.OrgID, &entry.UserID, &entry.AuditText,
			&recommendation, &legalRefs, &status, &entry.GeneratedAt,
			&entry.Signature, &entry.Source, &entry.Attempt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := json.Unmarshal(recommendation, &entry.Recommendation); err != nil {
			return nil, fmt.Errorf("unmarshal recommendation: %w", err)
		}
		if err := json.Unmarshal(legalRefs, &entry.LegalReferences); err != nil {
			return nil, fmt.Errorf("unmarshal legal references: %w", err)
		}
		entry.Status = models.AuditStatus(status)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
