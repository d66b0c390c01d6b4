package memory_test

import (
	"context"
	"testing"

	"github.com/architeacher/u2f-registrations/internal/adapters/repos/memory"
	"github.com/architeacher/u2f-registrations/internal/adapters/repos/repotest"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.DeviceRepository = (*memory.Repository)(nil)
	_ ports.DeviceStore      = (*memory.Store)(nil)
	_ ports.HealthChecker    = (*memory.Repository)(nil)
)

func TestRepositoryConformance(t *testing.T) {
	store := memory.NewStore(nil)

	fixture := repotest.NewFixture(func(context.Context) error {
		store.Reset()

		return nil
	})

	factory := func(_ *testing.T, clk clock.Clock, policy model.ExpirationPolicy) ports.DeviceRepository {
		return memory.NewRepository(store, clk, policy, logger.NewTestLogger())
	}

	repotest.Run(t, factory, fixture)
}

func TestStore_HandsOutCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore(clock.NewManual(repotest.Epoch))

	persisted, err := store.Insert(ctx, model.NewRegistration("alice", "K1"))
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	require.True(t, persisted[0].CreatedAt.Equal(repotest.Epoch))

	persisted[0].Owner = "mallory"

	stored, err := store.Get(ctx, persisted[0].ID)
	require.NoError(t, err)
	require.Equal(t, "alice", stored.Owner)

	all, err := store.All(ctx)
	require.NoError(t, err)

	all[0].PublicKeyMaterial = "tampered"

	stored, err = store.Get(ctx, persisted[0].ID)
	require.NoError(t, err)
	require.Equal(t, "K1", stored.PublicKeyMaterial)
}

func TestStore_SequenceSurvivesClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore(nil)

	first, err := store.Insert(ctx, model.NewRegistration("alice", "K1"), model.NewRegistration("bob", "K2"))
	require.NoError(t, err)
	require.Equal(t, model.RegistrationID(1), first[0].ID)
	require.Equal(t, model.RegistrationID(2), first[1].ID)

	require.NoError(t, store.Clear(ctx))
	require.Zero(t, store.Len())

	next, err := store.Insert(ctx, model.NewRegistration("alice", "K1"))
	require.NoError(t, err)
	require.Equal(t, model.RegistrationID(3), next[0].ID)

	store.Reset()

	rewound, err := store.Insert(ctx, model.NewRegistration("alice", "K1"))
	require.NoError(t, err)
	require.Equal(t, model.RegistrationID(1), rewound[0].ID)
}

func TestStore_InsertIgnoresIncomingIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore(nil)

	input := model.NewRegistration("alice", "K1")
	input.ID = 99

	persisted, err := store.Insert(ctx, input)
	require.NoError(t, err)
	require.Equal(t, model.RegistrationID(1), persisted[0].ID)

	_, err = store.Insert(ctx, nil)
	require.ErrorIs(t, err, model.ErrInvalidRegistration)
}

func TestStore_DeleteByOwnerAndDeleteIf(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore(nil)

	_, err := store.Insert(ctx,
		model.NewRegistration("alice", "K1"),
		model.NewRegistration("alice", "K2"),
		model.NewRegistration("bob", "K3"),
	)
	require.NoError(t, err)

	require.NoError(t, store.DeleteByOwner(ctx, "alice"))
	require.Equal(t, 1, store.Len())

	removed, err := store.DeleteIf(ctx, func(reg *model.Registration) bool { return reg.Owner == "bob" })
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Zero(t, store.Len())

	_, err = store.Get(ctx, 1)
	require.ErrorIs(t, err, model.ErrRegistrationNotFound)
}
