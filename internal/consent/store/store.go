// Package store persists consent records.
package store

import (
	"context"

	"consentry/internal/consent/models"
)

// Store is the consent read-side persistence boundary.
type Store interface {
	ListByUser(ctx context.Context, userID string) ([]models.ConsentRecord, error)
}
