package infrastructure

import (
	"context"
	"testing"

	"github.com/architeacher/u2f-registrations/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNewTracerProvider(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		exporter string
		wantErr  bool
	}{
		{name: "stdout exporter", exporter: exporterTypeStdOut},
		{name: "grpc exporter connects lazily", exporter: exporterTypeGRPC},
		{name: "unknown exporter", exporter: "zipkin", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tp, shutdown, err := NewTracerProvider(
				config.App{ServiceName: "svc-registrations"},
				config.Telemetry{
					ExporterType: tc.exporter,
					OtelGRPCHost: "localhost",
					OtelGRPCPort: "4317",
					Traces:       config.Traces{SamplerRatio: 1},
				},
			)
			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, tp)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_ = shutdown(ctx)
		})
	}
}

func TestNewNoopTracerProvider(t *testing.T) {
	t.Parallel()

	tp := NewNoopTracerProvider()
	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	defer span.End()

	require.False(t, span.SpanContext().IsValid())
}
