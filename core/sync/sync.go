// Package sync runs the follower loop: it periodically measures the offset
// between the engine clock and the configured reference devices, combines
// the measurements and applies the resulting correction.
package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GauiStori/bacnet-stack/base/metrics"

	"github.com/GauiStori/bacnet-stack/core/client"
	"github.com/GauiStori/bacnet-stack/core/measurements"
	"github.com/GauiStori/bacnet-stack/core/sync/adjustments"
)

type Config struct {
	SyncTimeout  time.Duration
	SyncInterval time.Duration

	// Clock drives the loop schedule; nil means the real time ticker.
	Clock clockwork.Clock
}

// AdjustableClock is the clock being synchronized.
type AdjustableClock interface {
	Adjust(offset time.Duration) error
}

// filterResetter lets a reference clock drop its sample history after the
// local clock was stepped; offsets measured before the step no longer
// relate to the clock being steered.
type filterResetter interface {
	ResetFilter()
}

type syncMetrics struct {
	corrsApplied prometheus.Counter
	offset       prometheus.Gauge
}

func newSyncMetrics() *syncMetrics {
	return &syncMetrics{
		corrsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.SyncCorrsAppliedN,
			Help: metrics.SyncCorrsAppliedH,
		}),
		offset: promauto.NewGauge(prometheus.GaugeOpts{
			Name: metrics.SyncOffsetN,
			Help: metrics.SyncOffsetH,
		}),
	}
}

var syncMtrcs = newSyncMetrics()

func measureOffsetToRefClocks(ctx context.Context, log *slog.Logger,
	refClks []client.ReferenceClock, ms []measurements.Measurement,
	timeout time.Duration) (time.Duration, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client.MeasureClockOffsets(ctx, log, refClks, ms)
	return measurements.FaultTolerantMidpoint(ms)
}

// Run synchronizes lclk to the reference clocks until ctx is canceled. Each
// round measures all reference clocks within cfg.SyncTimeout, combines the
// usable offsets and applies the adjustment's correction.
func Run(ctx context.Context, log *slog.Logger, cfg Config, lclk AdjustableClock,
	adj adjustments.Adjustment, refClks []client.ReferenceClock) {
	if len(refClks) == 0 {
		log.LogAttrs(ctx, slog.LevelInfo, "no reference clocks configured")
		return
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	log.LogAttrs(ctx, slog.LevelInfo, "starting clock synchronization",
		slog.Int("reference clocks", len(refClks)),
		slog.Duration("interval", cfg.SyncInterval),
	)

	drift := newTheilSen(log)
	ms := make([]measurements.Measurement, len(refClks))

	ticker := clk.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		offset, ok := measureOffsetToRefClocks(ctx, log, refClks, ms, cfg.SyncTimeout)
		if !ok {
			log.LogAttrs(ctx, slog.LevelInfo, "no usable clock offset measurements in this round")
			continue
		}
		syncMtrcs.offset.Set(offset.Seconds())

		corr, step := adj.Do(offset)
		if corr != 0 {
			err := lclk.Adjust(corr)
			if err != nil {
				log.LogAttrs(ctx, slog.LevelError, "failed to adjust clock",
					slog.Any("error", err))
				continue
			}
			syncMtrcs.corrsApplied.Inc()
		}
		if step {
			log.LogAttrs(ctx, slog.LevelInfo, "stepped clock",
				slog.Duration("offset", corr))
			for _, c := range refClks {
				if r, ok := c.(filterResetter); ok {
					r.ResetFilter()
				}
			}
			drift.Reset()
		} else {
			log.LogAttrs(ctx, slog.LevelDebug, "adjusted clock",
				slog.Duration("offset", offset),
				slog.Duration("correction", corr),
			)
			drift.Do(ctx, clk.Now(), offset)
		}
	}
}
