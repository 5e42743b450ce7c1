// Package service hosts the auxiliary long-running loops of the daemon.
package service

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GauiStori/bacnet-stack/base/logbase"
	"github.com/GauiStori/bacnet-stack/base/metrics"

	"github.com/GauiStori/bacnet-stack/core/client"
	"github.com/GauiStori/bacnet-stack/core/datetime"

	"github.com/GauiStori/bacnet-stack/net/bacnet"
)

// TimeSyncConfig drives the time master role: where the notifications go,
// how often, and whether the UTC flavor of the service is used.
type TimeSyncConfig struct {
	LocalAddr  *net.UDPAddr
	Recipients []netip.AddrPort

	// BroadcastAddr marks the recipient, if any, that is reached with a
	// broadcast BVLL frame instead of a unicast one.
	BroadcastAddr netip.AddrPort

	UTC      bool
	Interval time.Duration

	// Align snaps the sends onto the interval grid anchored at the
	// device's local midnight, shifted by IntervalOffset.
	Align          bool
	IntervalOffset time.Duration

	// Clock provides the waits; nil means the real clock.
	Clock clockwork.Clock
}

var timeSyncsSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: metrics.TimeSyncsSentN,
	Help: metrics.TimeSyncsSentH,
})

func sinceMidnight(t bacnet.Time) time.Duration {
	return time.Duration(t.Hour)*time.Hour +
		time.Duration(t.Minute)*time.Minute +
		time.Duration(t.Second)*time.Second +
		time.Duration(t.Hundredths)*10*time.Millisecond
}

// nextSyncWait returns the time until the next boundary of the interval grid
// anchored at midnight plus the offset. On a boundary the full interval is
// returned so one boundary never fires twice.
func nextSyncWait(sinceMidnight, interval, offset time.Duration) time.Duration {
	offset %= interval
	rem := (sinceMidnight - offset) % interval
	if rem < 0 {
		rem += interval
	}
	return interval - rem
}

func sendTimeSyncs(ctx context.Context, log *slog.Logger,
	cfg TimeSyncConfig, ipc *client.IPClient, lclk *datetime.SharedClock) {
	var dt bacnet.DateTime
	var err error
	if cfg.UTC {
		dt, err = lclk.UTC()
	} else {
		var snap datetime.Snapshot
		snap, err = lclk.Local()
		dt = snap.DateTime
	}
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError,
			"failed to read device clock", slog.Any("error", err))
		return
	}
	for _, r := range cfg.Recipients {
		broadcast := cfg.BroadcastAddr.IsValid() && r == cfg.BroadcastAddr
		err := client.SendTimeSyncIP(ctx, ipc.Log, ipc,
			cfg.LocalAddr, net.UDPAddrFromAddrPort(r), broadcast, cfg.UTC, dt)
		if err != nil {
			log.LogAttrs(ctx, slog.LevelError,
				"failed to send time synchronization",
				slog.String("to", r.String()), slog.Any("error", err))
			continue
		}
		timeSyncsSent.Inc()
	}
}

func runTimeSync(ctx context.Context, log *slog.Logger, clk clockwork.Clock,
	cfg TimeSyncConfig, ipc *client.IPClient, lclk *datetime.SharedClock) {
	log.LogAttrs(ctx, slog.LevelInfo, "starting time synchronization service",
		slog.Int("recipients", len(cfg.Recipients)),
		slog.Bool("utc", cfg.UTC),
		slog.Duration("interval", cfg.Interval),
	)
	for {
		wait := cfg.Interval
		if cfg.Align {
			snap, err := lclk.Local()
			if err != nil {
				log.LogAttrs(ctx, slog.LevelError,
					"failed to read device clock", slog.Any("error", err))
			} else {
				wait = nextSyncWait(sinceMidnight(snap.DateTime.Time),
					cfg.Interval, cfg.IntervalOffset)
			}
		}
		select {
		case <-clk.After(wait):
		case <-ctx.Done():
			return
		}
		sendTimeSyncs(ctx, log, cfg, ipc, lclk)
	}
}

// StartTimeSyncService makes the device a time master, notifying the
// configured recipients with TimeSynchronization or UTCTimeSynchronization
// requests on the configured schedule.
func StartTimeSyncService(ctx context.Context, log *slog.Logger,
	cfg TimeSyncConfig, ipc *client.IPClient, lclk *datetime.SharedClock) {
	if len(cfg.Recipients) == 0 {
		return
	}
	if cfg.Interval <= 0 {
		logbase.FatalContext(ctx, log, "unexpected time synchronization interval",
			slog.Duration("interval", cfg.Interval))
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	go runTimeSync(ctx, log, clk, cfg, ipc, lclk)
}
