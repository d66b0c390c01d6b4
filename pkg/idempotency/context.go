package idempotency

import "context"

type ctxKey struct{}

// WithKey attaches an idempotency key to ctx. Outbound writes forward it in HeaderName.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKey{}, key)
}

// FromContext reports the key attached by WithKey. An empty key counts as absent.
func FromContext(ctx context.Context) (string, bool) {
	key, _ := ctx.Value(ctxKey{}).(string)

	return key, key != ""
}

// EnsureKey keeps a caller supplied key or attaches a fresh one, so every
// retry of one logical write carries the same key.
func EnsureKey(ctx context.Context) (context.Context, string) {
	if key, ok := FromContext(ctx); ok {
		return ctx, key
	}

	key := NewKey()

	return WithKey(ctx, key), key
}
