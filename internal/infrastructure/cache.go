package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/architeacher/u2f-registrations/internal/config"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// KeydbClient wraps the Redis protocol client shared by the Redis backend and
// the idempotency store.
type KeydbClient struct {
	client *redis.Client
	logger logger.Logger
}

func NewKeyDBClient(cfg config.Cache, log logger.Logger) *KeydbClient {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           int(cfg.DB),
		PoolSize:     int(cfg.PoolSize),
		MinIdleConns: int(cfg.MinIdleConns),
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   int(cfg.MaxRetries),
	})

	return &KeydbClient{
		client: client,
		logger: log.Component("keydb"),
	}
}

// Redis exposes the underlying client for pipelines and scripted operations.
func (c *KeydbClient) Redis() *redis.Client {
	return c.client
}

func (c *KeydbClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *KeydbClient) Close() error {
	return c.client.Close()
}

func (c *KeydbClient) Get(ctx context.Context, key string) ([]byte, error) {
	startTime := time.Now()

	result, err := c.client.Get(ctx, key).Bytes()

	c.logger.Debug().
		Str("key", key).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("hit", err == nil).
		Msg("keydb get operation")

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}

		return nil, err
	}

	return result, nil
}

func (c *KeydbClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	startTime := time.Now()

	err := c.client.Set(ctx, key, value, ttl).Err()

	c.logger.Debug().
		Str("key", key).
		Str("expiry", ttl.String()).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("success", err == nil).
		Msg("keydb set operation")

	return err
}

// Lock sets key only when it does not exist yet.
func (c *KeydbClient) Lock(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	acquired, err := c.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}

	c.logger.Debug().
		Str("key", key).
		Str("expiry", ttl.String()).
		Bool("acquired", acquired).
		Msg("keydb setnx operation")

	return acquired, nil
}

func (c *KeydbClient) Delete(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

// IsHealthy checks if the cache is available.
func (c *KeydbClient) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return c.Ping(ctx) == nil
}

// GetInt64 reads a counter and the instant it was read. A missing key reads as -1.
func (c *KeydbClient) GetInt64(ctx context.Context, key string) (int64, time.Time, error) {
	val, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return -1, time.Now(), nil
		}

		return 0, time.Time{}, err
	}

	return val, time.Now(), nil
}

func (c *KeydbClient) SetInt64NX(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

var compareAndSwapScript = redis.NewScript(`
	local current = redis.call("GET", KEYS[1])
	if current == false or tonumber(current) ~= tonumber(ARGV[1]) then
		return 0
	end
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
`)

// CompareAndSwapInt64 replaces the value only while it still equals old.
func (c *KeydbClient) CompareAndSwapInt64(ctx context.Context, key string, old, new int64, ttl time.Duration) (bool, error) {
	result, err := compareAndSwapScript.Run(ctx, c.client, []string{key}, old, new, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}
