package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/architeacher/u2f-registrations/internal/adapters/repos/ratelimit"
	"github.com/architeacher/u2f-registrations/internal/config"
	"github.com/architeacher/u2f-registrations/internal/infrastructure"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/stretchr/testify/require"
	"github.com/throttled/throttled/v2"
)

func newStore(t *testing.T) (*ratelimit.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := infrastructure.NewKeyDBClient(config.Cache{Address: server.Addr()}, logger.NewTestLogger())

	t.Cleanup(func() { _ = client.Close() })

	return ratelimit.NewRedisStore(client, "registrations"), server
}

func TestRedisStore_CompareAndSwap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, server := newStore(t)

	value, now, err := store.GetWithTime(ctx, "client")
	require.NoError(t, err)
	require.Equal(t, int64(-1), value)
	require.False(t, now.IsZero())

	set, err := store.SetIfNotExistsWithTTL(ctx, "client", 10, time.Minute)
	require.NoError(t, err)
	require.True(t, set)
	require.True(t, server.Exists("registrations:ratelimit:client"))

	set, err = store.SetIfNotExistsWithTTL(ctx, "client", 20, time.Minute)
	require.NoError(t, err)
	require.False(t, set)

	swapped, err := store.CompareAndSwapWithTTL(ctx, "client", 5, 30, time.Minute)
	require.NoError(t, err)
	require.False(t, swapped)

	swapped, err = store.CompareAndSwapWithTTL(ctx, "client", 10, 30, time.Minute)
	require.NoError(t, err)
	require.True(t, swapped)

	value, _, err = store.GetWithTime(ctx, "client")
	require.NoError(t, err)
	require.Equal(t, int64(30), value)
}

func TestRedisStore_LimitsThroughGCRA(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	limiter, err := throttled.NewGCRARateLimiterCtx(store, throttled.RateQuota{
		MaxRate:  throttled.PerMin(1),
		MaxBurst: 1,
	})
	require.NoError(t, err)

	for range 2 {
		limited, _, err := limiter.RateLimitCtx(context.Background(), "client", 1)
		require.NoError(t, err)
		require.False(t, limited)
	}

	limited, _, err := limiter.RateLimitCtx(context.Background(), "client", 1)
	require.NoError(t, err)
	require.True(t, limited)
}
