package services

import (
	"context"
	"time"

	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/architeacher/u2f-registrations/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
)

// Purger periodically removes expired registrations from the store.
type Purger struct {
	cleaner  ports.Cleaner
	interval time.Duration
	metrics  metrics.Client
	logger   logger.Logger
}

func NewPurger(cleaner ports.Cleaner, interval time.Duration, metricsClient metrics.Client, log logger.Logger) *Purger {
	return &Purger{
		cleaner:  cleaner,
		interval: interval,
		metrics:  metricsClient,
		logger:   log.Component("purger"),
	}
}

// Run blocks until ctx is done. A non-positive interval disables the loop.
func (p *Purger) Run(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info().Msg("expired registration purge disabled")

		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PurgeOnce(ctx)
		}
	}
}

// PurgeOnce runs a single pass and returns how many registrations it removed.
func (p *Purger) PurgeOnce(ctx context.Context) int {
	removed, err := p.cleaner.PurgeExpired(ctx)
	if err != nil {
		p.metrics.Inc(ctx, "purge.failures", 1)
		p.logger.Error().Err(err).Msg("purging expired registrations")

		return 0
	}

	p.metrics.Inc(ctx, "purge.removed", removed, attribute.String("outcome", "success"))
	p.logger.Debug().Int("removed", removed).Msg("purge pass finished")

	return removed
}
