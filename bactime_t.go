// Driver for quick experiments

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/GauiStori/bacnet-stack/base/logbase"
	"github.com/GauiStori/bacnet-stack/core/client"
	"github.com/GauiStori/bacnet-stack/core/datetime"
	"github.com/GauiStori/bacnet-stack/core/server"
	"github.com/GauiStori/bacnet-stack/driver/clocks"
	"github.com/GauiStori/bacnet-stack/net/bacnet"
)

// runT starts a device on a simulated host clock running two minutes ahead,
// measures its offset, brings it in line with a UTC time synchronization and
// measures again.
func runT() {
	var laddr string

	tFlags := flag.NewFlagSet("t", flag.ExitOnError)
	tFlags.StringVar(&laddr, "local", "127.0.0.1:47808", "Local address")

	err := tFlags.Parse(os.Args[2:])
	if err != nil || tFlags.NArg() != 0 {
		panic("failed to parse arguments")
	}

	initLogger(logLevelVerbose)
	log := slog.Default()
	zlog := zap.L()

	ctx := context.Background()

	localAddr, err := net.ResolveUDPAddr("udp", laddr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse local address: %v", err))
	}

	simclk := clocks.NewSimulatedClock(time.Now().UTC().Add(2 * time.Minute))
	lclk := datetime.NewSharedClock(datetime.NewClock(simclk, datetime.Config{}))
	lclk.Init()

	dev := &server.Device{
		Instance:   defaultDeviceID,
		Name:       defaultDeviceName,
		VendorName: defaultVendorName,
		VendorID:   vendorID,
		ModelName:  defaultModelName,
		Clock:      lclk,
	}
	server.StartIPServer(ctx, zlog, localAddr, dev)

	c := &client.IPClient{
		Log: zlog,
	}

	measure := func() {
		ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()
		ts, off, err := client.MeasureClockOffsetIP(ctx, zlog, c, localAddr, localAddr)
		if err != nil {
			logbase.Fatal(log, "failed to measure clock offset", slog.Any("error", err))
		}
		fmt.Printf("%s,%+.9f\n", ts.UTC().Format(time.RFC3339), off.Seconds())
	}

	measure()

	dt := bacnet.DateTimeFromTime(time.Now().UTC())
	err = client.SendTimeSyncIP(ctx, zlog, c, localAddr, localAddr, false, true, dt)
	if err != nil {
		logbase.Fatal(log, "failed to send time synchronization", slog.Any("error", err))
	}

	time.Sleep(100 * time.Millisecond)
	measure()
}
