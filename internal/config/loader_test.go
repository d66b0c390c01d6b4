package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	t.Setenv("APP_ENVIRONMENT", "sandbox")
	t.Setenv("APP_SERVICE_NAME", "svc-registrations")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REPOSITORY_BACKEND", "rest")
	t.Setenv("REPOSITORY_EXPIRE_AFTER", "48h")
	t.Setenv("RESOURCE_URL", "http://resource:8080/devices")

	cfg, err := Init()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "sandbox", cfg.App.Env.Name)
	assert.Equal(t, "svc-registrations", cfg.App.ServiceName)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, BackendREST, cfg.Repository.Backend)
	assert.Equal(t, 48*time.Hour, cfg.Repository.ExpireAfter)
	assert.Equal(t, "http://resource:8080/devices", cfg.Resource.URL)
}

func TestInit_DefaultValues(t *testing.T) {
	cfg, err := Init()
	require.NoError(t, err)

	assert.Equal(t, "svc-registrations", cfg.App.ServiceName)
	assert.Equal(t, uint(8088), cfg.HTTPServer.Port)

	assert.Equal(t, BackendMemory, cfg.Repository.Backend)
	assert.Equal(t, 30*24*time.Hour, cfg.Repository.ExpireAfter)
	assert.Equal(t, time.Hour, cfg.Repository.PurgeInterval)

	assert.False(t, cfg.Resource.Serve)
	assert.True(t, cfg.Resource.CircuitBreaker.Enabled)
	assert.Equal(t, uint(5), cfg.Resource.CircuitBreaker.FailureThreshold)

	assert.Equal(t, uint(3), cfg.Retry.MaxAttempts)
	assert.Equal(t, []string{"POST"}, cfg.Idempotency.RequiredMethods)
	assert.Equal(t, IdempotencyStoreMemory, cfg.Idempotency.Store)
	assert.Contains(t, cfg.ThrottledRateLimiting.SkipPaths, "/admin/health")
}

func TestInit_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("REPOSITORY_BACKEND", "ldap")

	_, err := Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ldap")
}

func TestValidate(t *testing.T) {
	valid := func() *ServiceConfig {
		return &ServiceConfig{
			Repository:  Repository{Backend: BackendMemory, ExpireAfter: time.Hour},
			Idempotency: Idempotency{Store: IdempotencyStoreMemory},
			Retry:       Retry{MaxAttempts: 1},
		}
	}

	cases := []struct {
		name    string
		mutate  func(cfg *ServiceConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*ServiceConfig) {}},
		{name: "zero expiry is allowed", mutate: func(cfg *ServiceConfig) { cfg.Repository.ExpireAfter = 0 }},
		{name: "negative expiry", mutate: func(cfg *ServiceConfig) { cfg.Repository.ExpireAfter = -time.Second }, wantErr: true},
		{name: "rest without url", mutate: func(cfg *ServiceConfig) { cfg.Repository.Backend = BackendREST }, wantErr: true},
		{name: "unknown idempotency store", mutate: func(cfg *ServiceConfig) { cfg.Idempotency.Store = "memcached" }, wantErr: true},
		{name: "no retry attempts", mutate: func(cfg *ServiceConfig) { cfg.Retry.MaxAttempts = 0 }, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestGetEnvironment(t *testing.T) {
	cases := []struct {
		name     string
		env      string
		expected int
	}{
		{name: "production", env: "production", expected: Production},
		{name: "prod shorthand", env: "prod", expected: Production},
		{name: "staging", env: "staging", expected: Staging},
		{name: "stg shorthand", env: "stg", expected: Staging},
		{name: "sandbox", env: "sandbox", expected: Sandbox},
		{name: "development default", env: "anything", expected: Development},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &ServiceConfig{App: App{Env: Environment{Name: tc.env}}}

			assert.Equal(t, tc.expected, cfg.GetEnvironment())
			assert.Equal(t, tc.expected == Production, cfg.IsProduction())
		})
	}
}

func TestDumpRedactsSecrets(t *testing.T) {
	cfg := &ServiceConfig{
		Database: Database{Password: "db-secret"},
		Cache:    Cache{Password: "cache-secret"},
	}

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, cfg))

	assert.NotContains(t, buf.String(), "db-secret")
	assert.NotContains(t, buf.String(), "cache-secret")
	assert.Equal(t, "db-secret", cfg.Database.Password)
}

func TestDatabaseDSN(t *testing.T) {
	db := Database{Host: "db", Port: 5432, Database: "registrations", Username: "u", Password: "p", SSLMode: "disable"}

	assert.Equal(t, "postgres://u:p@db:5432/registrations?sslmode=disable", db.DSN())
}
