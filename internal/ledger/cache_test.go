package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *StatsCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStatsCache(client, time.Minute)
}

func TestStatsCacheFetchPopulatesOnce(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) (any, error) {
		calls++
		return Stats{TotalProducts: 3, TotalUnits: 42}, nil
	}

	var stats Stats
	require.NoError(t, cache.Fetch(ctx, &stats, loader))
	require.Equal(t, 3, stats.TotalProducts)
	require.Equal(t, 1, calls)

	// second read is served from redis
	var again Stats
	require.NoError(t, cache.Fetch(ctx, &again, loader))
	require.Equal(t, stats, again)
	require.Equal(t, 1, calls)
}

func TestStatsCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	serve := Stats{TotalProducts: 1}
	loader := func(ctx context.Context) (any, error) { return serve, nil }

	var stats Stats
	require.NoError(t, cache.Fetch(ctx, &stats, loader))
	require.Equal(t, 1, stats.TotalProducts)

	serve = Stats{TotalProducts: 2}
	require.NoError(t, cache.Bump(ctx))

	require.NoError(t, cache.Fetch(ctx, &stats, loader))
	require.Equal(t, 2, stats.TotalProducts)
}

func TestStatsCacheNilPassthrough(t *testing.T) {
	var cache *StatsCache
	var stats Stats
	err := cache.Fetch(context.Background(), &stats, func(ctx context.Context) (any, error) {
		return Stats{TotalUnits: 7}, nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 7, stats.TotalUnits)
	require.NoError(t, cache.Bump(context.Background()))
}
