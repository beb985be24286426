package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/internal/revocation/models"
)

func pendingPair(now time.Time) (*models.Revocation, *models.AuditLogEntry) {
	rev := &models.Revocation{
		ID:          "rev-1",
		UserID:      "u1",
		OrgID:       "org1",
		Purpose:     "marketing",
		Fields:      []string{"name", "phone"},
		RequestedAt: now,
		Status:      models.RevocationPending,
	}
	entry := &models.AuditLogEntry{
		ID:              "audit-1",
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
	return rev, entry
}

func TestRunInTxCommitsPair(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	rev, entry := pendingPair(time.Now().UTC())

	err := s.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.CreateRevocation(txCtx, rev); err != nil {
			return err
		}
		return s.CreateAuditEntry(txCtx, entry)
	})
	require.NoError(t, err)

	gotRev, err := s.GetRevocation(ctx, "rev-1")
	require.NoError(t, err)
	assert.Equal(t, models.RevocationPending, gotRev.Status)

	gotEntry, err := s.GetAuditEntry(ctx, "audit-1")
	require.NoError(t, err)
	assert.Equal(t, "rev-1", gotEntry.RevocationID)
	assert.Equal(t, models.AuditPending, gotEntry.Status)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	rev, _ := pendingPair(time.Now().UTC())
	boom := errors.New("audit insert failed")

	err := s.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.CreateRevocation(txCtx, rev); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// No partial state: the revocation written before the failure is gone.
	_, err = s.GetRevocation(ctx, "rev-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteAuditEntryExactlyOnce(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()
	rev, entry := pendingPair(now)
	require.NoError(t, s.CreateRevocation(ctx, rev))
	require.NoError(t, s.CreateAuditEntry(ctx, entry))

	params := models.CompleteAuditParams{
		AuditID:         "audit-1",
		AuditText:       "final narrative",
		Recommendation:  []string{"step 1"},
		LegalReferences: []string{"NDPR - Consent and withdrawal (Article: Consent)"},
		Signature:       models.PlaceholderSignature,
		Source:          "fallback",
		Attempt:         3,
		GeneratedAt:     now.Add(time.Second),
	}
	require.NoError(t, s.CompleteAuditEntry(ctx, params))

	got, err := s.GetAuditEntry(ctx, "audit-1")
	require.NoError(t, err)
	assert.Equal(t, models.AuditCompleted, got.Status)
	assert.Equal(t, "final narrative", got.AuditText)

	// Second completion must be rejected; the entry never reverts.
	err = s.CompleteAuditEntry(ctx, params)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	got, err = s.GetAuditEntry(ctx, "audit-1")
	require.NoError(t, err)
	assert.Equal(t, models.AuditCompleted, got.Status)
}

func TestListAuditByOrgFiltersAndSorts(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Now().UTC()

	for i, org := range []string{"org1", "org2", "org1"} {
		entry := &models.AuditLogEntry{
			ID:           "audit-" + org + "-" + time.Duration(i).String(),
			RevocationID: "rev-x",
			OrgID:        org,
			UserID:       "u1",
			Status:       models.AuditPending,
			GeneratedAt:  base.Add(time.Duration(i) * time.Minute),
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
}
