package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	AnalyticsCachePrefix = "ledger:analytics:v:"
	CacheVersionKey      = "ledger:analytics:version"
	DefaultCacheTTL      = 5 * time.Minute
)

// AnalyticsCache caches aggregates under a version number. Bumping the
// version orphans every cached entry at once; the TTL reclaims them.
type AnalyticsCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewAnalyticsCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *AnalyticsCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &AnalyticsCache{redis: client, ttl: ttl, logger: logger}
}

// Get looks name up under the current version and returns that version.
// Pass it to Set so a value computed while the ledger changed is stored
// under the version it was read at, never under a newer one. A version of
// 0 means the cache is unavailable.
func (c *AnalyticsCache) Get(ctx context.Context, name string, dest interface{}) (int64, bool) {
	if c == nil || c.redis == nil {
		return 0, false
	}
	version, err := c.version(ctx)
	if err != nil {
		return 0, false
	}

	raw, err := c.redis.Get(ctx, c.key(version, name)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Analytics cache read failed", zap.String("name", name), zap.Error(err))
		}
		return version, false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("Failed to unmarshal cached analytics", zap.String("name", name), zap.Error(err))
		return version, false
	}
	return version, true
}

// Set stores value under the version returned by Get.
func (c *AnalyticsCache) Set(ctx context.Context, version int64, name string, value interface{}) {
	if c == nil || c.redis == nil || version <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to marshal analytics for cache", zap.String("name", name), zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, c.key(version, name), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache analytics", zap.String("name", name), zap.Error(err))
	}
}

// Invalidate bumps the version.
func (c *AnalyticsCache) Invalidate(ctx context.Context) error {
	if c == nil || c.redis == nil {
		return nil
	}
	if err := c.redis.Incr(ctx, CacheVersionKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate analytics cache: %w", err)
	}
	return nil
}

func (c *AnalyticsCache) version(ctx context.Context) (int64, error) {
	ver, err := c.redis.Get(ctx, CacheVersionKey).Int64()
	if err == nil {
		return ver, nil
	}
	if errors.Is(err, redis.Nil) {
		// SETNX so a concurrent Incr is never overwritten
		if err := c.redis.SetNX(ctx, CacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.redis.Get(ctx, CacheVersionKey).Int64()
	}
	return 0, err
}

func (c *AnalyticsCache) key(version int64, name string) string {
	return fmt.Sprintf("%s%d:%s", AnalyticsCachePrefix, version, name)
}
