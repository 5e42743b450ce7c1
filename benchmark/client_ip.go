// Package benchmark exercises a BACnet/IP device server with concurrent
// clock offset measurements and reports the elapsed time, with per worker
// round trip histograms for runs that lost requests.
package benchmark

import (
	"context"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/mmcloughlin/profile"

	"go.uber.org/zap"

	"github.com/GauiStori/bacnet-stack/core/client"
)

func RunIPBenchmark(localAddr, remoteAddr *net.UDPAddr, log *slog.Logger) {
	const numClientGoroutine = 100
	const numRequestPerClient = 10_000

	ctx := context.Background()
	dlog := slog.New(slog.DiscardHandler)
	zlog := zap.NewNop()

	var mu sync.Mutex
	sg := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(numClientGoroutine)

	for range numClientGoroutine {
		go func() {
			var err error
			hg := hdrhistogram.New(1, 50000, 5)

			c := &client.IPClient{
				Log:       zlog,
				Histogram: hg,
			}

			defer wg.Done()
			<-sg
			for range numRequestPerClient + 5 {
				ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				_, _, err = client.MeasureClockOffsetIP(ctx, zlog, c, localAddr, remoteAddr)
				if err != nil {
					dlog.LogAttrs(ctx, slog.LevelInfo,
						"failed to measure clock offset",
						slog.Any("error", err),
					)
				}
				cancel()
			}
			if hg.TotalCount() < numRequestPerClient {
				mu.Lock()
				defer mu.Unlock()
				_, _ = hg.PercentilesPrint(os.Stdout, 1, 1.0)
			}
		}()
	}
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."))
	t0 := time.Now()
	close(sg)
	wg.Wait()
	p.Stop()
	log.LogAttrs(ctx, slog.LevelInfo, "time elapsed", slog.Duration("duration", time.Since(t0)))
}
