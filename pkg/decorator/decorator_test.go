package decorator_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/architeacher/u2f-registrations/pkg/decorator"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

type (
	RegisterDeviceCommand struct {
		Owner string
	}

	ListOwnerDevicesQuery struct {
		Owner string
	}

	recordingMetrics struct {
		mu       sync.Mutex
		counters map[string]int
		observed []string
	}

	commandHandlerFunc func(context.Context, RegisterDeviceCommand) (string, error)
	queryHandlerFunc   func(context.Context, ListOwnerDevicesQuery) ([]string, error)
)

func (f commandHandlerFunc) Handle(ctx context.Context, cmd RegisterDeviceCommand) (string, error) {
	return f(ctx, cmd)
}

func (f queryHandlerFunc) Execute(ctx context.Context, query ListOwnerDevicesQuery) ([]string, error) {
	return f(ctx, query)
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: make(map[string]int)}
}

func (m *recordingMetrics) Inc(_ context.Context, key string, _ any, _ ...attribute.KeyValue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[key]++
}

func (m *recordingMetrics) Observe(_ context.Context, key string, _ float64, _ ...attribute.KeyValue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.observed = append(m.observed, key)
}

func (m *recordingMetrics) Handler() http.Handler { return http.NotFoundHandler() }

func (m *recordingMetrics) Shutdown(context.Context) error { return nil }

func TestApplyCommandDecorators(t *testing.T) {
	t.Parallel()

	errBackend := errors.New("backend down")

	cases := []struct {
		name        string
		handlerErr  error
		wantCounter string
		wantLog     string
	}{
		{
			name:        "records success",
			wantCounter: "commands.register_device.success",
			wantLog:     "command executed successfully",
		},
		{
			name:        "records failure",
			handlerErr:  errBackend,
			wantCounter: "commands.register_device.failure",
			wantLog:     "failed to execute command",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			metricsClient := newRecordingMetrics()

			handler := decorator.ApplyCommandDecorators[RegisterDeviceCommand, string](
				commandHandlerFunc(func(_ context.Context, cmd RegisterDeviceCommand) (string, error) {
					return cmd.Owner, tc.handlerErr
				}),
				logger.NewBufferedTestLogger(&buf),
				metricsClient,
				noop.NewTracerProvider(),
			)

			result, err := handler.Handle(context.Background(), RegisterDeviceCommand{Owner: "alice"})
			if tc.handlerErr != nil {
				require.ErrorIs(t, err, tc.handlerErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, "alice", result)
			}

			require.Equal(t, 1, metricsClient.counters[tc.wantCounter])
			require.Equal(t, []string{"commands.register_device.duration"}, metricsClient.observed)
			require.Contains(t, buf.String(), tc.wantLog)
			require.Contains(t, buf.String(), `"command":"register_device"`)
		})
	}
}

func TestApplyQueryDecorators(t *testing.T) {
	t.Parallel()

	metricsClient := newRecordingMetrics()

	handler := decorator.ApplyQueryDecorators[ListOwnerDevicesQuery, []string](
		queryHandlerFunc(func(_ context.Context, query ListOwnerDevicesQuery) ([]string, error) {
			return []string{query.Owner}, nil
		}),
		logger.NewTestLogger(),
		metricsClient,
		nil,
	)

	result, err := handler.Execute(context.Background(), ListOwnerDevicesQuery{Owner: "bob"})

	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, result)
	require.Equal(t, 1, metricsClient.counters["queries.list_owner_devices.success"])
}
