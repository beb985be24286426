// Package cache provides the time-windowed enrichment cache keyed by
// revocation fingerprint. The in-memory implementation bounds growth with an
// LRU cap on top of the freshness window; the Redis implementation shares the
// window across instances.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// FreshnessWindow is how long a cached narrative is considered current.
// Entries older than this are treated as absent.
const FreshnessWindow = 2 * time.Minute

// DefaultCapacity bounds the in-memory cache when no size is configured.
const DefaultCapacity = 1024

// Cache stores serialized narrative payloads by fingerprint.
type Cache interface {
	Get(ctx context.Context, fingerprint string) ([]byte, bool)
	Put(ctx context.Context, fingerprint string, payload []byte)
}

type memoryEntry struct {
	fingerprint string
	payload     []byte
	storedAt    time.Time
}

// Memory is a thread-safe LRU cache with per-entry freshness checking.
type Memory struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	order    *list.List
	entries  map[string]*list.Element
	now      func() time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithWindow overrides the freshness window, for tests.
func WithWindow(window time.Duration) MemoryOption {
	return func(m *Memory) { m.window = window }
}

// NewMemory creates a bounded in-memory cache.
func NewMemory(capacity int, opts ...MemoryOption) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	m := &Memory{
		capacity: capacity,
		window:   FreshnessWindow,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the payload for fingerprint when a fresh entry exists.
func (m *Memory) Get(_ context.Context, fingerprint string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[fingerprint]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*memoryEntry)
	if m.now().Sub(entry.storedAt) >= m.window {
		// Stale entries are removed eagerly rather than waiting for eviction.
		m.order.Remove(elem)
		delete(m.entries, fingerprint)
		return nil, false
	}
	m.order.MoveToFront(elem)
	return entry.payload, true
}

// Put stores or overwrites the payload for fingerprint, evicting the least
// recently used entry when the cache is full.
func (m *Memory) Put(_ context.Context, fingerprint string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[fingerprint]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.payload = payload
		entry.storedAt = m.now()
		m.order.MoveToFront(elem)
		return
	}

	if m.order.Len() >= m.capacity {
		oldest := m.order.Back()
		if oldest != nil {
			m.order.Remove(oldest)
			delete(m.entries, oldest.Value.(*memoryEntry).fingerprint)
		}
	}

	m.entries[fingerprint] = m.order.PushFront(&memoryEntry{
		fingerprint: fingerprint,
		payload:     payload,
		storedAt:    m.now(),
	})
}

// Len reports the number of cached entries, fresh or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
