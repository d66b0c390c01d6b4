package config

import (
	"fmt"
	"time"
)

// Compile time variables are set by -ldflags.
var (
	ServiceVersion string
	CommitSHA      string
)

const (
	Development = 1 << iota
	Sandbox
	Staging
	Production
)

const (
	BackendMemory   = "memory"
	BackendREST     = "rest"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	IdempotencyStoreMemory = "memory"
	IdempotencyStoreRedis  = "redis"
)

type (
	ServiceConfig struct {
		App                   App                   `json:"app"`
		HTTPServer            HTTPServer            `json:"http_server"`
		Repository            Repository            `json:"repository"`
		Resource              Resource              `json:"resource"`
		Database              Database              `json:"database"`
		Cache                 Cache                 `json:"cache"`
		Retry                 Retry                 `json:"retry"`
		ThrottledRateLimiting ThrottledRateLimiting `json:"throttled_rate_limiting"`
		Idempotency           Idempotency           `json:"idempotency"`
		Logging               Logging               `json:"logging"`
		Telemetry             Telemetry             `json:"telemetry"`
	}

	App struct {
		ServiceName string      `envconfig:"APP_SERVICE_NAME" default:"svc-registrations" json:"service_name"`
		Env         Environment `json:"environment"`
	}

	Environment struct {
		Name string `envconfig:"APP_ENVIRONMENT" default:"development" json:"env"`
	}

	HTTPServer struct {
		Host            string        `envconfig:"HTTP_SERVER_HOST" default:"0.0.0.0" json:"host"`
		Port            uint          `envconfig:"HTTP_SERVER_PORT" default:"8088" json:"port"`
		ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
	}

	Repository struct {
		Backend       string        `envconfig:"REPOSITORY_BACKEND" default:"memory" json:"backend"`
		ExpireAfter   time.Duration `envconfig:"REPOSITORY_EXPIRE_AFTER" default:"720h" json:"expire_after"`
		PurgeInterval time.Duration `envconfig:"REPOSITORY_PURGE_INTERVAL" default:"1h" json:"purge_interval"`
	}

	Resource struct {
		URL            string               `envconfig:"RESOURCE_URL" default:"http://localhost:8088/resource" json:"url"`
		Timeout        time.Duration        `envconfig:"RESOURCE_TIMEOUT" default:"10s" json:"timeout"`
		Serve          bool                 `envconfig:"RESOURCE_SERVE" default:"false" json:"serve"`
		CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	}

	CircuitBreakerConfig struct {
		Enabled          bool          `envconfig:"RESOURCE_CB_ENABLED" default:"true" json:"enabled"`
		MaxRequests      uint          `envconfig:"RESOURCE_CB_MAX_REQUESTS" default:"5" json:"max_requests"`
		Interval         time.Duration `envconfig:"RESOURCE_CB_INTERVAL" default:"60s" json:"interval"`
		Timeout          time.Duration `envconfig:"RESOURCE_CB_TIMEOUT" default:"30s" json:"timeout"`
		FailureThreshold uint          `envconfig:"RESOURCE_CB_FAILURE_THRESHOLD" default:"5" json:"failure_threshold"`
	}

	Database struct {
		Host            string        `envconfig:"POSTGRES_HOST" default:"postgres" json:"host"`
		Port            uint          `envconfig:"POSTGRES_PORT" default:"5432" json:"port"`
		Database        string        `envconfig:"POSTGRES_DATABASE" default:"registrations" json:"database"`
		Username        string        `envconfig:"POSTGRES_USERNAME" default:"postgres" json:"username"`
		Password        string        `envconfig:"POSTGRES_PASSWORD" default:"" json:"password,omitempty"`
		SSLMode         string        `envconfig:"POSTGRES_SSL_MODE" default:"disable" json:"ssl_mode"`
		MaxConnections  int32         `envconfig:"POSTGRES_MAX_CONNECTIONS" default:"25" json:"max_connections"`
		MinConnections  int32         `envconfig:"POSTGRES_MIN_CONNECTIONS" default:"5" json:"min_connections"`
		ConnectTimeout  time.Duration `envconfig:"POSTGRES_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		MaxConnLifetime time.Duration `envconfig:"POSTGRES_MAX_CONN_LIFETIME" default:"1h" json:"max_conn_lifetime"`
		MaxConnIdleTime time.Duration `envconfig:"POSTGRES_MAX_CONN_IDLE_TIME" default:"30m" json:"max_conn_idle_time"`
	}

	Cache struct {
		Address      string        `envconfig:"CACHE_ADDRESS" default:"keydb:6379" json:"address"`
		Password     string        `envconfig:"CACHE_PASSWORD" default:"" json:"password,omitempty"`
		DB           uint          `envconfig:"CACHE_DB" default:"0" json:"db"`
		PoolSize     uint          `envconfig:"CACHE_POOL_SIZE" default:"10" json:"pool_size"`
		MinIdleConns uint          `envconfig:"CACHE_MIN_IDLE_CONNS" default:"3" json:"min_idle_conns"`
		DialTimeout  time.Duration `envconfig:"CACHE_DIAL_TIMEOUT" default:"5s" json:"dial_timeout"`
		ReadTimeout  time.Duration `envconfig:"CACHE_READ_TIMEOUT" default:"3s" json:"read_timeout"`
		WriteTimeout time.Duration `envconfig:"CACHE_WRITE_TIMEOUT" default:"3s" json:"write_timeout"`
		MaxRetries   uint          `envconfig:"CACHE_MAX_RETRIES" default:"3" json:"max_retries"`
		KeyPrefix    string        `envconfig:"CACHE_KEY_PREFIX" default:"registrations" json:"key_prefix"`
	}

	Retry struct {
		MaxAttempts     uint          `envconfig:"RETRY_MAX_ATTEMPTS" default:"3" json:"max_attempts"`
		InitialInterval time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"200ms" json:"initial_interval"`
		Multiplier      float64       `envconfig:"RETRY_MULTIPLIER" default:"1.5" json:"multiplier"`
		Jitter          float64       `envconfig:"RETRY_JITTER" default:"0.3" json:"jitter"`
		MaxInterval     time.Duration `envconfig:"RETRY_MAX_INTERVAL" default:"5s" json:"max_interval"`
	}

	ThrottledRateLimiting struct {
		Enabled           bool     `envconfig:"RATE_LIMITING_ENABLED" default:"true" json:"enabled"`
		RequestsPerSecond uint     `envconfig:"RATE_LIMITING_REQUESTS_PER_SECOND" default:"50" json:"requests_per_second"`
		BurstSize         uint     `envconfig:"RATE_LIMITING_BURST_SIZE" default:"100" json:"burst_size"`
		EnableIPLimiting  bool     `envconfig:"RATE_LIMITING_ENABLE_IP_LIMITING" default:"true" json:"enable_ip_limiting"`
		MaxKeys           int      `envconfig:"RATE_LIMITING_MAX_KEYS" default:"65536" json:"max_keys"`
		SkipPaths         []string `envconfig:"RATE_LIMITING_SKIP_PATHS" default:"/admin/health,/metrics" json:"skip_paths"`
		GracefulDegraded  bool     `envconfig:"RATE_LIMITING_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	Idempotency struct {
		Enabled          bool          `envconfig:"IDEMPOTENCY_ENABLED" default:"true" json:"enabled"`
		Store            string        `envconfig:"IDEMPOTENCY_STORE" default:"memory" json:"store"`
		CacheTTL         time.Duration `envconfig:"IDEMPOTENCY_CACHE_TTL" default:"24h" json:"cache_ttl"`
		LockTTL          time.Duration `envconfig:"IDEMPOTENCY_LOCK_TTL" default:"30s" json:"lock_ttl"`
		RequiredMethods  []string      `envconfig:"IDEMPOTENCY_REQUIRED_METHODS" default:"POST" json:"required_methods"`
		HeaderName       string        `envconfig:"IDEMPOTENCY_HEADER" default:"Idempotency-Key" json:"header_name"`
		ReplayedHeader   string        `envconfig:"IDEMPOTENCY_REPLAYED_HEADER" default:"Idempotent-Replayed" json:"replayed_header"`
		GracefulDegraded bool          `envconfig:"IDEMPOTENCY_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	Logging struct {
		Level     string    `envconfig:"LOG_LEVEL" default:"info" json:"level"`
		Format    string    `envconfig:"LOG_FORMAT" default:"json" json:"format"`
		AccessLog AccessLog `json:"access_log"`
	}

	AccessLog struct {
		Enabled            bool `envconfig:"ACCESS_LOG_ENABLED" default:"true" json:"enabled"`
		IncludeQueryParams bool `envconfig:"ACCESS_LOG_INCLUDE_QUERY_PARAMS" default:"true" json:"include_query_params"`
	}

	Telemetry struct {
		Enabled      bool   `envconfig:"OTEL_ENABLED" default:"false" json:"enabled"`
		ExporterType string `envconfig:"OTEL_EXPORTER" default:"grpc" json:"exporter_type"`

		OtelGRPCHost string `envconfig:"OTEL_HOST" json:"otel_grpc_host"`
		OtelGRPCPort string `envconfig:"OTEL_PORT" default:"4317" json:"otel_grpc_port"`

		Metrics Metrics `json:"metrics"`
		Traces  Traces  `json:"traces"`
	}

	Metrics struct {
		Enabled bool `envconfig:"METRICS_ENABLED" default:"true" json:"enabled"`
	}

	Traces struct {
		Enabled      bool    `envconfig:"TRACES_ENABLED" default:"false" json:"enabled"`
		SamplerRatio float64 `envconfig:"TRACES_SAMPLER_RATIO" default:"1.0" json:"sampler_ratio"`
	}
)

func (c *ServiceConfig) GetEnvironment() int {
	switch c.App.Env.Name {
	case "production", "prod":
		return Production
	case "staging", "stg":
		return Staging
	case "sandbox", "sbx":
		return Sandbox
	default:
		return Development
	}
}

func (c *ServiceConfig) IsProduction() bool {
	return c.GetEnvironment() == Production
}

// Validate rejects settings the runtime cannot start with.
func (c *ServiceConfig) Validate() error {
	switch c.Repository.Backend {
	case BackendMemory, BackendREST, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("unknown repository backend %q", c.Repository.Backend)
	}

	if c.Repository.ExpireAfter < 0 {
		return fmt.Errorf("repository expire_after must be non-negative, got %s", c.Repository.ExpireAfter)
	}

	if c.Repository.Backend == BackendREST && c.Resource.URL == "" {
		return fmt.Errorf("resource url is required for the %s backend", BackendREST)
	}

	switch c.Idempotency.Store {
	case IdempotencyStoreMemory, IdempotencyStoreRedis:
	default:
		return fmt.Errorf("unknown idempotency store %q", c.Idempotency.Store)
	}

	if c.Retry.MaxAttempts == 0 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}

	return nil
}

// OTLPEndpoint joins the collector host and port.
func (t Telemetry) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%s", t.OtelGRPCHost, t.OtelGRPCPort)
}

// DSN builds the pgx connection string.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}
