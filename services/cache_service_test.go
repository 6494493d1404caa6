package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// A nil cache (Redis not configured) must behave as a transparent no-op so
// dashboards always fall through to live queries.
func TestNilDashboardCache(t *testing.T) {
	var cache *DashboardCache
	ctx := context.Background()

	var dest DashboardStats
	assert.False(t, cache.Get(ctx, "dashboard:public", &dest))
	assert.NoError(t, cache.Set(ctx, "dashboard:public", dest))
	assert.NoError(t, cache.Invalidate(ctx, "dashboard:public"))
}

func TestInitDashboardCacheDisabled(t *testing.T) {
	cache, err := InitDashboardCache("", 0)
	assert.NoError(t, err)
	assert.Nil(t, cache)
	assert.Nil(t, GetDashboardCache())
}

func TestInitDashboardCacheBadURL(t *testing.T) {
	_, err := InitDashboardCache("not-a-url", 0)
	assert.Error(t, err)
}
