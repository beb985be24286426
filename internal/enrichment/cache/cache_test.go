package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryFreshnessWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewMemory(8, WithClock(clock))
	ctx := context.Background()

	c.Put(ctx, "u1-org1-marketing", []byte(`{"source":"external"}`))

	got, ok := c.Get(ctx, "u1-org1-marketing")
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"source":"external"}`), got)

	// One second shy of the window: still fresh.
	now = now.Add(FreshnessWindow - time.Second)
	_, ok = c.Get(ctx, "u1-org1-marketing")
	assert.True(t, ok)

	// At the window boundary the entry is treated as absent and dropped.
	now = now.Add(time.Second)
	_, ok = c.Get(ctx, "u1-org1-marketing")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemory(2)
	ctx := context.Background()

	c.Put(ctx, "a", []byte("1"))
	c.Put(ctx, "b", []byte("2"))

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get(ctx, "a")
	assert.True(t, ok)

	c.Put(ctx, "c", []byte("3"))
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryOverwriteRefreshes(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewMemory(8, WithClock(clock))
	ctx := context.Background()

	c.Put(ctx, "fp", []byte("old"))
	now = now.Add(FreshnessWindow + time.Minute)
	c.Put(ctx, "fp", []byte("new"))

	got, ok := c.Get(ctx, "fp")
	assert.True(t, ok)
	assert.Equal(t, []byte("new"), got)
	assert.Equal(t, 1, c.Len())
}
