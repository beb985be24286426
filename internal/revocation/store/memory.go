package store

import (
	"context"
	"sort"
	"sync"

	"consentry/internal/revocation/models"
)

type memTxKey struct{}

// Memory is an in-memory Store for tests and dependency-free development.
// RunInTx takes a coarse lock and restores a snapshot on failure, so the
// atomicity contract matches the Postgres implementation.
type Memory struct {
	mu          sync.RWMutex
	revocations map[string]models.Revocation
	audits      map[string]models.AuditLogEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		revocations: make(map[string]models.Revocation),
		audits:      make(map[string]models.AuditLogEntry),
	}
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(memTxKey{}).(bool)
	return v
}

func (s *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	revSnap := make(map[string]models.Revocation, len(s.revocations))
	for k, v := range s.revocations {
		revSnap[k] = v
	}
	auditSnap := make(map[string]models.AuditLogEntry, len(s.audits))
	for k, v := range s.audits {
		auditSnap[k] = v
	}

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.revocations = revSnap
		s.audits = auditSnap
		return err
	}
	return nil
}

func (s *Memory) CreateRevocation(ctx context.Context, rev *models.Revocation) error {
	if !inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	s.revocations[rev.ID] = *rev
	return nil
}

func (s *Memory) UpdateRevocationStatus(ctx context.Context, id string, status models.RevocationStatus) error {
	if !inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	rev, ok := s.revocations[id]
	if !ok {
		return ErrNotFound
	}
	rev.Status = status
	s.revocations[id] = rev
	return nil
}

func (s *Memory) GetRevocation(ctx context.Context, id string) (*models.Revocation, error) {
	if !inTx(ctx) {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	rev, ok := s.revocations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rev, nil
}

func (s *Memory) CreateAuditEntry(ctx context.Context, entry *models.AuditLogEntry) error {
	if !inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	s.audits[entry.ID] = *entry
	return nil
}

func (s *Memory) CompleteAuditEntry(ctx context.Context, params models.CompleteAuditParams) error {
	if !inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	entry, ok := s.audits[params.AuditID]
	if !ok {
		return ErrNotFound
	}
	if entry.Status == models.AuditCompleted {
		return ErrAlreadyCompleted
	}
	entry.AuditText = params.AuditText
	entry.Recommendation = params.Recommendation
	entry.LegalReferences = params.LegalReferences
	entry.Signature = params.Signature
	entry.Source = params.Source
	entry.Attempt = params.Attempt
	entry.GeneratedAt = params.GeneratedAt
	entry.Status = models.AuditCompleted
	s.audits[params.AuditID] = entry
	return nil
}

func (s *Memory) GetAuditEntry(ctx context.Context, id string) (*models.AuditLogEntry, error) {
	if !inTx(ctx) {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	entry, ok := s.audits[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (s *Memory) ListAuditByOrg(ctx context.Context, orgID string) ([]models.AuditLogEntry, error) {
	if !inTx(ctx) {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	var entries []models.AuditLogEntry
	for _, e := range s.audits {
		if e.OrgID == orgID {
			entries = append(entries, e)
		}
	}
	sortByGeneratedAtDesc(entries)
	return entries, nil
}

func (s *Memory) ListRecentAudit(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	if !inTx(ctx) {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	entries := make([]models.AuditLogEntry, 0, len(s.audits))
	for _, e := range s.audits {
		entries = append(entries, e)
	}
	sortByGeneratedAtDesc(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func sortByGeneratedAtDesc(entries []models.AuditLogEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].GeneratedAt.After(entries[j].GeneratedAt)
	})
}
