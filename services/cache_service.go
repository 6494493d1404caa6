package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DashboardCache keeps serialized dashboard aggregates in Redis for a short
// TTL. Dashboards tolerate slightly stale reads, so a cache hit skips the
// aggregate queries entirely. A nil cache (no REDIS_URL configured) is a
// no-op: every Get misses and every Set succeeds silently.
type DashboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

var dashboardCacheInstance *DashboardCache

// InitDashboardCache connects the cache to Redis using the given URL.
// An empty URL disables caching.
func InitDashboardCache(redisURL string, ttl time.Duration) (*DashboardCache, error) {
	if redisURL == "" {
		dashboardCacheInstance = nil
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	dashboardCacheInstance = &DashboardCache{
		client: redis.NewClient(opts),
		ttl:    ttl,
	}
	return dashboardCacheInstance, nil
}

// GetDashboardCache returns the cache instance, possibly nil
func GetDashboardCache() *DashboardCache {
	return dashboardCacheInstance
}

// SetDashboardCache sets the cache instance (primarily for testing)
func SetDashboardCache(c *DashboardCache) {
	dashboardCacheInstance = c
}

// Get loads the cached value for key into dest. It returns false on a miss,
// on a disabled cache, or on any Redis error; dashboards fall back to the
// live queries rather than failing.
func (c *DashboardCache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false
	}
	return true
}

// Set stores value under key for the cache TTL
func (c *DashboardCache) Set(ctx context.Context, key string, value interface{}) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate drops a cached key, e.g. after a burst of writes
func (c *DashboardCache) Invalidate(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Del(ctx, key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
