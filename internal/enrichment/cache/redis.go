package cache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "enrich:fp:"

// Redis backs the enrichment cache with a shared Redis instance so multiple
// replicas dedupe against the same fingerprints. Freshness is delegated to
// key TTLs; memory bounding is Redis's concern (maxmemory policy).
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis creates a Redis-backed cache.
func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

func (r *Redis) Get(ctx context.Context, fingerprint string) ([]byte, bool) {
	payload, err := r.client.Get(ctx, keyPrefix+fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		// Cache misses on Redis trouble; the generator falls through to the
		// external call, which is the correct degradation.
		r.logger.WarnContext(ctx, "enrichment cache read failed", "error", err)
		return nil, false
	}
	return payload, true
}

func (r *Redis) Put(ctx context.Context, fingerprint string, payload []byte) {
	if err := r.client.Set(ctx, keyPrefix+fingerprint, payload, FreshnessWindow).Err(); err != nil {
		r.logger.WarnContext(ctx, "enrichment cache write failed", "error", err)
	}
}
