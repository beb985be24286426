//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/internal/revocation/models"
	"consentry/pkg/testutil/containers"
)

func TestPostgresStoreIntegration(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	s := NewPostgres(pg.DB)
	ctx := context.Background()

	t.Run("tx commits pair", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))
		rev, entry := pendingPair(time.Now().UTC().Truncate(time.Microsecond))

		err := s.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.CreateRevocation(txCtx, rev); err != nil {
				return err
			}
			return s.CreateAuditEntry(txCtx, entry)
		})
		require.NoError(t, err)

		gotRev, err := s.GetRevocation(ctx, rev.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RevocationPending, gotRev.Status)
		assert.Equal(t, rev.Fields, gotRev.Fields)

		gotEntry, err := s.GetAuditEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, rev.ID, gotEntry.RevocationID)
		assert.Equal(t, models.PlaceholderNarrative, gotEntry.AuditText)
		assert.Equal(t, []string{models.BaselineLegalReference}, gotEntry.LegalReferences)
	})

	t.Run("tx rolls back on error", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))
		rev, _ := pendingPair(time.Now().UTC())
		boom := errors.New("audit insert failed")

		err := s.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.CreateRevocation(txCtx, rev); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = s.GetRevocation(ctx, rev.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("complete audit entry exactly once", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))
		now := time.Now().UTC().Truncate(time.Microsecond)
		rev, entry := pendingPair(now)
		require.NoError(t, s.CreateRevocation(ctx, rev))
		require.NoError(t, s.CreateAuditEntry(ctx, entry))

		params := models.CompleteAuditParams{
			AuditID:         entry.ID,
			AuditText:       "final narrative",
			Recommendation:  []string{"step 1"},
			LegalReferences: []string{"NDPR - Consent and withdrawal (Article: Consent)"},
			Signature:       models.PlaceholderSignature,
			Source:          "external",
			Attempt:         1,
			GeneratedAt:     now.Add(time.Second),
		}
		require.NoError(t, s.CompleteAuditEntry(ctx, params))

		got, err := s.GetAuditEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AuditCompleted, got.Status)
		assert.Equal(t, "final narrative", got.AuditText)
		assert.Equal(t, "external", got.Source)
		assert.Equal(t, 1, got.Attempt)

		err = s.CompleteAuditEntry(ctx, params)
		assert.ErrorIs(t, err, ErrAlreadyCompleted)

		err = s.CompleteAuditEntry(ctx, models.CompleteAuditParams{AuditID: "missing"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update revocation status", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))
		rev, _ := pendingPair(time.Now().UTC())
		require.NoError(t, s.CreateRevocation(ctx, rev))

		require.NoError(t, s.UpdateRevocationStatus(ctx, rev.ID, models.RevocationProcessed))
		got, err := s.GetRevocation(ctx, rev.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RevocationProcessed, got.Status)

		err = s.UpdateRevocationStatus(ctx, "missing", models.RevocationProcessed)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list audit by org newest first", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))
		base := time.Now().UTC().Truncate(time.Microsecond)
		rev, _ := pendingPair(base)
		require.NoError(t, s.CreateRevocation(ctx, rev))

		for i, org := range []string{"org1", "org2", "org1"} {
			entry := &models.AuditLogEntry{
				ID:              "audit-it-" + org + "-" + time.Duration(i).String(),
				RevocationID:    rev.ID,
				OrgID:           org,
				UserID:          "u1",
				Recommendation:  []string{},
				LegalReferences: []string{},
				Status:          models.AuditPending,
				GeneratedAt:     base.Add(time.Duration(i) * time.Minute),
			}
			require.NoError(t, s.CreateAuditEntry(ctx, entry))
		}

		entries, err := s.ListAuditByOrg(ctx, "org1")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.True(t, entries[0].GeneratedAt.After(entries[1].GeneratedAt))

		recent, err := s.ListRecentAudit(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, recent, 2)
	})
}
