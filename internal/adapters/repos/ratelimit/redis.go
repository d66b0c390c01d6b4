// Package ratelimit backs the GCRA rate limiter with a shared store.
package ratelimit

import (
	"context"
	"time"

	"github.com/architeacher/u2f-registrations/internal/infrastructure"
	"github.com/throttled/throttled/v2"
)

const keyPrefix = "ratelimit:"

// RedisStore implements throttled.GCRAStoreCtx on KeyDB/Redis so every
// replica draws from the same quota.
type RedisStore struct {
	client *infrastructure.KeydbClient
	prefix string
}

var _ throttled.GCRAStoreCtx = (*RedisStore)(nil)

func NewRedisStore(client *infrastructure.KeydbClient, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix + ":" + keyPrefix,
	}
}

func (s *RedisStore) GetWithTime(ctx context.Context, key string) (int64, time.Time, error) {
	return s.client.GetInt64(ctx, s.prefix+key)
}

func (s *RedisStore) SetIfNotExistsWithTTL(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return s.client.SetInt64NX(ctx, s.prefix+key, value, ttl)
}

func (s *RedisStore) CompareAndSwapWithTTL(ctx context.Context, key string, old, new int64, ttl time.Duration) (bool, error) {
	return s.client.CompareAndSwapInt64(ctx, s.prefix+key, old, new, ttl)
}
