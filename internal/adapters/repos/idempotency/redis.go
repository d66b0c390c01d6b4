// Package idempotency persists replayable responses for the idempotency middleware.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/architeacher/u2f-registrations/internal/infrastructure"
	"github.com/architeacher/u2f-registrations/pkg/idempotency"
)

const (
	lockSuffix = ":lock"
	lockValue  = "processing"
)

// RedisStore keeps records in KeyDB/Redis so replicas share them.
type RedisStore struct {
	client *infrastructure.KeydbClient
}

var _ idempotency.Store = (*RedisStore)(nil)

func NewRedisStore(client *infrastructure.KeydbClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns nil without error when nothing is stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	data, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, infrastructure.ErrCacheMiss) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting cached response: %w", err)
	}

	var record idempotency.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshalling cached response: %w", err)
	}

	return &record, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, record *idempotency.Record, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshalling response: %w", err)
	}

	if err := s.client.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("setting cached response: %w", err)
	}

	return nil
}

func (s *RedisStore) SetLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := s.client.Lock(ctx, key+lockSuffix, lockValue, ttl)
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}

	return acquired, nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, key string) error {
	if err := s.client.Delete(ctx, key+lockSuffix); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}

	return nil
}
