package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*AnalyticsCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAnalyticsCache(client, time.Minute, zap.NewNop()), mr
}

func TestAnalyticsCache_NilIsDisabled(t *testing.T) {
	var c *AnalyticsCache
	var dest map[string]int

	version, hit := c.Get(context.Background(), "summary", &dest)
	assert.False(t, hit)
	assert.Zero(t, version)
	c.Set(context.Background(), 1, "summary", map[string]int{"a": 1})
	assert.NoError(t, c.Invalidate(context.Background()))
}

func TestAnalyticsCache_Key(t *testing.T) {
	c := NewAnalyticsCache(nil, 0, zap.NewNop())
	assert.Equal(t, "ledger:analytics:v:7:methods", c.key(7, "methods"))
	assert.Equal(t, DefaultCacheTTL, c.ttl)
}

func TestAnalyticsCache_RoundTripAndTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var dest map[string]int
	version, hit := c.Get(ctx, "methods", &dest)
	require.False(t, hit)
	assert.EqualValues(t, 1, version)

	c.Set(ctx, version, "methods", map[string]int{"UPI": 2})
	_, hit = c.Get(ctx, "methods", &dest)
	require.True(t, hit)
	assert.Equal(t, map[string]int{"UPI": 2}, dest)
	assert.Equal(t, time.Minute, mr.TTL("ledger:analytics:v:1:methods"))
}

func TestAnalyticsCache_InvalidateOrphansEntries(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var dest map[string]int
	version, _ := c.Get(ctx, "summary", &dest)
	c.Set(ctx, version, "summary", map[string]int{"total": 1})

	require.NoError(t, c.Invalidate(ctx))
	next, hit := c.Get(ctx, "summary", &dest)
	assert.False(t, hit)
	assert.Equal(t, version+1, next)
}

func TestAnalyticsCache_ValueReadBeforeInvalidateStaysOrphaned(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var dest map[string]int
	readAt, hit := c.Get(ctx, "summary", &dest)
	require.False(t, hit)

	// the ledger changes while the aggregate is being computed
	require.NoError(t, c.Invalidate(ctx))
	c.Set(ctx, readAt, "summary", map[string]int{"total": 0})

	_, hit = c.Get(ctx, "summary", &dest)
	assert.False(t, hit)
	assert.True(t, mr.Exists("ledger:analytics:v:1:summary"))
	assert.False(t, mr.Exists("ledger:analytics:v:2:summary"))
}

func TestAnalyticsCache_UnreachableRedisMisses(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewAnalyticsCache(client, time.Minute, zap.NewNop())

	var dest map[string]int
	_, hit := c.Get(context.Background(), "summary", &dest)
	assert.False(t, hit)
	assert.Error(t, c.Invalidate(context.Background()))
}

func TestAnalyticsCache_SetWithoutVersionIsNoop(t *testing.T) {
	c, mr := newTestCache(t)

	c.Set(context.Background(), 0, "summary", map[string]int{"total": 3})
	assert.Empty(t, mr.Keys())
}
