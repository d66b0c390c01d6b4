package decorator

import (
	"context"
	"fmt"
	"strings"

	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/architeacher/u2f-registrations/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	Command any

	CommandHandler[C Command, R any] interface {
		Handle(context.Context, C) (R, error)
	}
)

func ApplyCommandDecorators[C Command, R any](
	handler CommandHandler[C, R],
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) CommandHandler[C, R] {
	return commandLoggingDecorator[C, R]{
		base: commandMetricsDecorator[C, R]{
			base: commandTracingDecorator[C, R]{
				base:           handler,
				tracerProvider: tracerProvider,
			},
			client: metricsClient,
		},
		logger: log,
	}
}

// generateActionName turns "commands.RegisterDeviceCommand" into "register_device".
func generateActionName(handler any) string {
	name := fmt.Sprintf("%T", handler)
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}

	name = strings.TrimSuffix(strings.TrimSuffix(name, "Command"), "Query")

	var builder strings.Builder

	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			builder.WriteByte('_')
		}

		builder.WriteRune(r)
	}

	return strings.ToLower(builder.String())
}
