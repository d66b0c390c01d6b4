package redis_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/architeacher/u2f-registrations/internal/adapters/repos/redis"
	"github.com/architeacher/u2f-registrations/internal/adapters/repos/repotest"
	"github.com/architeacher/u2f-registrations/internal/config"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/infrastructure"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.DeviceRepository = (*redis.Repository)(nil)
	_ ports.HealthChecker    = (*redis.Repository)(nil)
)

func newClient(t *testing.T) (*infrastructure.KeydbClient, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)

	client := infrastructure.NewKeyDBClient(config.Cache{
		Address:      server.Addr(),
		PoolSize:     4,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}, logger.NewTestLogger())

	t.Cleanup(func() { _ = client.Close() })

	return client, server
}

func TestRepositoryConformance(t *testing.T) {
	client, server := newClient(t)

	fixture := repotest.NewFixture(func(context.Context) error {
		server.FlushAll()

		return nil
	})

	factory := func(_ *testing.T, clk clock.Clock, policy model.ExpirationPolicy) ports.DeviceRepository {
		return redis.NewRepository(client.Redis(), "", clk, policy, logger.NewTestLogger())
	}

	repotest.Run(t, factory, fixture)
}

func TestRepository_KeyLayout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, server := newClient(t)
	repo := redis.NewRepository(client.Redis(), "u2f", clock.NewManual(repotest.Epoch), model.ExpirationPolicy{}, logger.NewTestLogger())

	reg, err := repo.RegisterDevice(ctx, model.NewRegistration("alice", "K1"))
	require.NoError(t, err)
	require.Equal(t, model.RegistrationID(1), reg.ID)

	require.True(t, server.Exists("u2f:registration:1"))
	require.Equal(t, "1", mustGet(t, server, "u2f:seq"))

	members, err := server.Members("u2f:owner:alice")
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, members)

	require.NoError(t, repo.Clear(ctx))
	require.False(t, server.Exists("u2f:registration:1"))
	require.False(t, server.Exists("u2f:owner:alice"))
	require.Equal(t, "1", mustGet(t, server, "u2f:seq"))
}

func TestRepository_CorruptStoredData(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "not json"},
		{name: "unknown variant", payload: `{"type":"tpm","id":1,"owner":"alice","publicKeyMaterial":"K1"}`},
		{name: "missing owner", payload: `{"type":"u2f","id":1,"publicKeyMaterial":"K1"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			client, server := newClient(t)
			repo := redis.NewRepository(client.Redis(), "", nil, model.ExpirationPolicy{}, logger.NewTestLogger())

			require.NoError(t, server.Set("registrations:registration:1", tc.payload))
			_, err := server.SAdd("registrations:ids", "1")
			require.NoError(t, err)
			_, err = server.SAdd("registrations:owner:alice", "1")
			require.NoError(t, err)

			_, err = repo.ListRegisteredDevices(ctx)
			require.ErrorIs(t, err, model.ErrCorruptData)

			_, err = repo.GetRegisteredDevices(ctx, "alice")
			require.ErrorIs(t, err, model.ErrCorruptData)

			_, err = repo.GetRegisteredDevice(ctx, 1)
			require.ErrorIs(t, err, model.ErrCorruptData)
		})
	}
}

func TestRepository_DanglingIndexEntriesAreSkipped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, server := newClient(t)
	repo := redis.NewRepository(client.Redis(), "", clock.NewManual(repotest.Epoch), model.ExpirationPolicy{}, logger.NewTestLogger())

	_, err := repo.RegisterDevice(ctx, model.NewRegistration("alice", "K1"))
	require.NoError(t, err)

	_, err = server.SAdd("registrations:owner:alice", "42")
	require.NoError(t, err)

	regs, err := repo.GetRegisteredDevices(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	require.Equal(t, "K1", regs[0].PublicKeyMaterial)
}

func TestRepository_UnavailableServer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	server := miniredis.RunT(t)

	client := goredis.NewClient(&goredis.Options{
		Addr:        server.Addr(),
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	repo := redis.NewRepository(client, "", nil, model.ExpirationPolicy{}, logger.NewTestLogger())
	require.NoError(t, repo.Ping(ctx))

	server.Close()

	require.ErrorIs(t, repo.Ping(ctx), model.ErrStoreUnavailable)

	_, err := repo.RegisterDevice(ctx, model.NewRegistration("alice", "K1"))
	require.ErrorIs(t, err, model.ErrStoreUnavailable)

	_, err = repo.ListRegisteredDevices(ctx)
	require.ErrorIs(t, err, model.ErrStoreUnavailable)

	require.ErrorIs(t, repo.RemoveAll(ctx, "alice"), model.ErrStoreUnavailable)
	require.ErrorIs(t, repo.Clear(ctx), model.ErrStoreUnavailable)
}

// registerAfterListing runs register once, right after the next SMEMBERS on
// key has been answered.
type registerAfterListing struct {
	key      string
	armed    atomic.Bool
	register func(ctx context.Context)
}

func (h *registerAfterListing) DialHook(next goredis.DialHook) goredis.DialHook {
	return next
}

func (h *registerAfterListing) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return next
}

func (h *registerAfterListing) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		err := next(ctx, cmd)

		args := cmd.Args()
		if cmd.Name() == "smembers" && len(args) == 2 && args[1] == h.key && h.armed.CompareAndSwap(true, false) {
			h.register(ctx)
		}

		return err
	}
}

func TestRepository_RemoveAllKeepsConcurrentRegistration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	server := miniredis.RunT(t)

	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := redis.NewRepository(client, "", clock.NewManual(repotest.Epoch), model.ExpirationPolicy{}, logger.NewTestLogger())

	for _, key := range []string{"K1", "K2"} {
		_, err := repo.RegisterDevice(ctx, model.NewRegistration("alice", key))
		require.NoError(t, err)
	}

	var (
		late    *model.Registration
		lateErr error
	)

	hook := &registerAfterListing{
		key: "registrations:owner:alice",
		register: func(ctx context.Context) {
			late, lateErr = repo.RegisterDevice(ctx, model.NewRegistration("alice", "K3"))
		},
	}
	client.AddHook(hook)
	hook.armed.Store(true)

	require.NoError(t, repo.RemoveAll(ctx, "alice"))
	require.NoError(t, lateErr)
	require.NotNil(t, late)

	devices, err := repo.GetRegisteredDevices(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, late.ID, devices[0].ID)
	require.Equal(t, "K3", devices[0].PublicKeyMaterial)

	activated, err := repo.IsActivated(ctx, "alice")
	require.NoError(t, err)
	require.True(t, activated)

	members, err := server.Members("registrations:owner:alice")
	require.NoError(t, err)
	require.Equal(t, []string{late.ID.String()}, members)
}

func mustGet(t *testing.T, server *miniredis.Miniredis, key string) string {
	t.Helper()

	value, err := server.Get(key)
	require.NoError(t, err)

	return value
}
