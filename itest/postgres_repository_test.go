//go:build integration

package itest

import (
	"context"
	"testing"
	"time"

	"github.com/architeacher/u2f-registrations/internal/adapters/repos/postgres"
	"github.com/architeacher/u2f-registrations/internal/adapters/repos/repotest"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage    = "postgres:18-alpine"
	postgresDatabase = "registrations_test"
	postgresUsername = "test"
	postgresPassword = "test"
)

func TestPostgresRepositoryConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx,
		postgresImage,
		tcpostgres.WithDatabase(postgresDatabase),
		tcpostgres.WithUsername(postgresUsername),
		tcpostgres.WithPassword(postgresPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))

	fixture := repotest.NewFixture(func(ctx context.Context) error {
		_, err := pool.Exec(ctx, "TRUNCATE TABLE device_registrations RESTART IDENTITY")

		return err
	})

	factory := func(_ *testing.T, clk clock.Clock, policy model.ExpirationPolicy) ports.DeviceRepository {
		return postgres.NewRepository(pool, postgres.NewPgxScanner(), clk, policy, logger.NewTestLogger())
	}

	repotest.Run(t, factory, fixture)
}
