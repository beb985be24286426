package store

import (
	"context"
	"sort"
	"sync"

	"consentry/internal/consent/models"
)

// Memory is an in-memory consent store for tests and dependency-free
// development.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]models.ConsentRecord // keyed by user id
}

// NewMemory creates an empty in-memory consent store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]models.ConsentRecord)}
}

// Add inserts a consent record.
func (s *Memory) Add(rec models.ConsentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = append(s.records[rec.UserID], rec)
}

func (s *Memory) ListByUser(_ context.Context, userID string) ([]models.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := append([]models.ConsentRecord(nil), s.records[userID]...)
	sort.SliceStable(records, func(i, j int) bool {
		gi, gj := records[i].GivenAt, records[j].GivenAt
		switch {
		case gi == nil:
			return false
		case gj == nil:
			return true
		default:
			return gi.After(*gj)
		}
	})
	return records, nil
}
