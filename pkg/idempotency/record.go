package idempotency

import (
	"context"
	"time"
)

type (
	// Record is a completed response stored under an idempotency key.
	Record struct {
		Fingerprint string            `json:"fingerprint"`
		StatusCode  int               `json:"status_code"`
		Headers     map[string]string `json:"headers"`
		Body        []byte            `json:"body"`
		CreatedAt   time.Time         `json:"created_at"`
	}

	// Store persists records and the per-key processing lock.
	Store interface {
		Get(ctx context.Context, key string) (*Record, error)
		Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
		SetLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
		ReleaseLock(ctx context.Context, key string) error
	}
)
