package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"consentry/internal/consent/models"
)

// Postgres implements Store on top of database/sql with the pgx driver.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed consent store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) ListByUser(ctx context.Context, userID string) ([]models.ConsentRecord, error) {
	query := `
		SELECT c.id, c.user_id, c.org_id, COALESCE(o.name, ''), c.purpose,
		       c.fields, c.consent_given, c.given_at, c.revoked_at
		FROM consents c
		LEFT JOIN organizations o ON o.id = c.org_id
		WHERE c.user_id = $1
		ORDER BY c.given_at DESC NULLS LAST
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query consents: %w", err)
	}
	defer rows.Close()

	var records []models.ConsentRecord
	for rows.Next() {
		var (
			rec    models.ConsentRecord
			fields []byte
		)
		err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.OrgID, &rec.OrgName, &rec.Purpose,
			&fields, &rec.ConsentGiven, &rec.GivenAt, &rec.RevokedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal fields: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return records, nil
}
