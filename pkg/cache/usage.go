// Package cache holds the optional Redis cache in front of link usage aggregates.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

// Cached results live under usagePrefix:<generation>:<key>, each with its own
// TTL. Invalidate bumps the generation so every earlier entry becomes
// unreachable at once and expires on its own.
const (
	usagePrefix        = "ekaya-docs:link-usage"
	usageGenerationKey = usagePrefix + ":generation"
)

// AllLinksKey is the field used for usage stats across every link.
const AllLinksKey = "all"

// UsageCache caches link usage aggregates. Implementations treat backend
// failures as misses; a cache problem never fails the request.
type UsageCache interface {
	Get(ctx context.Context, key string) ([]*models.LinkUsage, bool)
	Set(ctx context.Context, key string, stats []*models.LinkUsage)
	Invalidate(ctx context.Context)
}

type redisUsageCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewUsageCache returns a Redis-backed UsageCache, or a no-op cache when
// client is nil (Redis not configured).
func NewUsageCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) UsageCache {
	if client == nil {
		return NoopUsageCache{}
	}
	return &redisUsageCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("usage-cache"),
	}
}

var _ UsageCache = (*redisUsageCache)(nil)

// entryKey returns the Redis key of key under the current generation.
func (c *redisUsageCache) entryKey(ctx context.Context, key string) (string, error) {
	gen, err := c.client.Get(ctx, usageGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s", usagePrefix, gen, key), nil
}

func (c *redisUsageCache) Get(ctx context.Context, key string) ([]*models.LinkUsage, bool) {
	entry, err := c.entryKey(ctx, key)
	if err != nil {
		c.logger.Warn("Failed to read usage cache generation", zap.Error(err))
		return nil, false
	}
	raw, err := c.client.Get(ctx, entry).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read usage cache", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var stats []*models.LinkUsage
	if err := json.Unmarshal(raw, &stats); err != nil {
		c.logger.Warn("Discarding corrupt usage cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return stats, true
}

func (c *redisUsageCache) Set(ctx context.Context, key string, stats []*models.LinkUsage) {
	raw, err := json.Marshal(stats)
	if err != nil {
		c.logger.Warn("Failed to encode usage stats", zap.Error(err))
		return
	}

	entry, err := c.entryKey(ctx, key)
	if err != nil {
		c.logger.Warn("Failed to read usage cache generation", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, entry, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to write usage cache", zap.String("key", key), zap.Error(err))
	}
}

func (c *redisUsageCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, usageGenerationKey).Err(); err != nil {
		c.logger.Warn("Failed to invalidate usage cache", zap.Error(err))
	}
}

// NoopUsageCache never stores anything.
type NoopUsageCache struct{}

func (NoopUsageCache) Get(context.Context, string) ([]*models.LinkUsage, bool) { return nil, false }
func (NoopUsageCache) Set(context.Context, string, []*models.LinkUsage)        {}
func (NoopUsageCache) Invalidate(context.Context)                              {}
