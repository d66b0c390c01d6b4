package idempotency

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		key         string
		expectedErr error
	}{
		{name: "generated key", key: NewKey()},
		{name: "underscores and dashes", key: "enroll_alice-0001-retry"},
		{name: "exactly minimum length", key: strings.Repeat("k", MinKeyLength)},
		{name: "exactly maximum length", key: strings.Repeat("k", MaxKeyLength)},
		{name: "too short", key: "short", expectedErr: ErrKeyTooShort},
		{name: "too long", key: strings.Repeat("k", MaxKeyLength+1), expectedErr: ErrKeyTooLong},
		{name: "invalid characters", key: "enroll alice key!", expectedErr: ErrKeyInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := Validate(tc.key)
			if tc.expectedErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func TestBuildCacheKey(t *testing.T) {
	t.Parallel()

	key := BuildCacheKey("POST", "/", "0123456789abcdef")

	require.True(t, strings.HasPrefix(key, KeyPrefix+":"))
	require.Equal(t, key, BuildCacheKey("POST", "/", "0123456789abcdef"))
	require.NotEqual(t, key, BuildCacheKey("POST", "/resource", "0123456789abcdef"))
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	first := Fingerprint([]byte(`{"owner":"alice"}`))

	require.Equal(t, first, Fingerprint([]byte(`{"owner":"alice"}`)))
	require.NotEqual(t, first, Fingerprint([]byte(`{"owner":"bob"}`)))
}

func TestContext(t *testing.T) {
	t.Parallel()

	_, ok := FromContext(context.Background())
	require.False(t, ok)

	_, ok = FromContext(WithKey(context.Background(), ""))
	require.False(t, ok)

	key, ok := FromContext(WithKey(context.Background(), "enroll-alice-0001"))
	require.True(t, ok)
	require.Equal(t, "enroll-alice-0001", key)
}

func TestEnsureKey(t *testing.T) {
	t.Parallel()

	ctx, key := EnsureKey(context.Background())
	require.NoError(t, Validate(key))

	again, sameKey := EnsureKey(ctx)
	require.Equal(t, key, sameKey)
	require.Equal(t, ctx, again)

	_, supplied := EnsureKey(WithKey(context.Background(), "enroll-alice-0001"))
	require.Equal(t, "enroll-alice-0001", supplied)
}
