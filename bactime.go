// BACnet time service

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"

	"github.com/GauiStori/bacnet-stack/base/logbase"
	"github.com/GauiStori/bacnet-stack/base/timemath"

	"github.com/GauiStori/bacnet-stack/benchmark"

	"github.com/GauiStori/bacnet-stack/core/client"
	"github.com/GauiStori/bacnet-stack/core/datetime"
	"github.com/GauiStori/bacnet-stack/core/server"
	"github.com/GauiStori/bacnet-stack/core/sync"
	"github.com/GauiStori/bacnet-stack/core/sync/adjustments"

	"github.com/GauiStori/bacnet-stack/driver/clocks"

	"github.com/GauiStori/bacnet-stack/net/apdu"
	"github.com/GauiStori/bacnet-stack/net/bacnet"

	"github.com/GauiStori/bacnet-stack/service"
)

const (
	logLevelQuiet = iota
	logLevelDefault
	logLevelVerbose

	clockModeDecoupled = "decoupled"
	clockModeCoupled   = "coupled"

	vendorID = 260

	defaultDeviceID   = 260
	defaultDeviceName = "bactime"
	defaultVendorName = "BACnet Stack at SourceForge"
	defaultModelName  = "GNU"
)

type svcConfig struct {
	LocalAddr          string   `toml:"local_address,omitempty"`
	LocalMetricsAddr   string   `toml:"local_metrics_address,omitempty"`
	RemoteAddr         string   `toml:"remote_address,omitempty"`
	BroadcastAddr      string   `toml:"broadcast_address,omitempty"`
	DeviceID           uint32   `toml:"device_id,omitempty"`
	DeviceName         string   `toml:"device_name,omitempty"`
	Description        string   `toml:"description,omitempty"`
	VendorName         string   `toml:"vendor_name,omitempty"`
	ModelName          string   `toml:"model_name,omitempty"`
	ClockMode          string   `toml:"clock_mode,omitempty"` // "decoupled" or "coupled"
	Timezone           string   `toml:"timezone,omitempty"`
	RTCDevice          string   `toml:"rtc_device,omitempty"`
	DSCP               uint8    `toml:"dscp,omitempty"` // must be in range [0, 63]
	ReferenceClocks    []string `toml:"reference_clocks,omitempty"`
	FilterSize         int      `toml:"filter_size,omitempty"`
	FilterPick         int      `toml:"filter_pick,omitempty"`
	PIControllerKP     float64  `toml:"pi_controller_kp,omitempty"`
	PIControllerKI     float64  `toml:"pi_controller_ki,omitempty"`
	PollInterval       float64  `toml:"poll_interval,omitempty"`
	SyncTimeout        float64  `toml:"sync_timeout,omitempty"`
	TimeSyncRecipients []string `toml:"time_sync_recipients,omitempty"`
	TimeSyncInterval   float64  `toml:"time_sync_interval,omitempty"` // minutes
	AlignIntervals     bool     `toml:"align_intervals,omitempty"`
	IntervalOffset     float64  `toml:"interval_offset,omitempty"` // minutes
	TimeSyncUTC        bool     `toml:"time_sync_utc,omitempty"`
}

type bacnetReferenceClockIP struct {
	log        *zap.Logger
	bacc       *client.IPClient
	lclk       *datetime.SharedClock
	localAddr  *net.UDPAddr
	remoteAddr *net.UDPAddr
}

func initLogger(logLevel int) {
	var h slog.Handler
	if logLevel == logLevelQuiet {
		h = slog.DiscardHandler
	} else {
		var (
			addSource   bool
			level       slog.Leveler
			replaceAttr func(groups []string, a slog.Attr) slog.Attr
		)
		if logLevel == logLevelVerbose {
			_, f, _, ok := runtime.Caller(0)
			var basepath string
			if ok {
				basepath = filepath.Dir(f)
			}
			addSource = true
			level = slog.LevelDebug
			replaceAttr = func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.SourceKey {
					source := a.Value.Any().(*slog.Source)
					if basepath == "" {
						source.File = filepath.Base(source.File)
					} else {
						relpath, err := filepath.Rel(basepath, source.File)
						if err != nil {
							source.File = filepath.Base(source.File)
						} else {
							source.File = relpath
						}
					}
				}
				return a
			}
		}
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			AddSource:   addSource,
			Level:       level,
			ReplaceAttr: replaceAttr,
		})
	}
	slog.SetDefault(slog.New(h))

	// The packet paths log through zap.
	switch logLevel {
	case logLevelQuiet:
		zap.ReplaceGlobals(zap.NewNop())
	case logLevelVerbose:
		zap.ReplaceGlobals(zap.Must(zap.NewDevelopment()))
	default:
		zap.ReplaceGlobals(zap.Must(zap.NewProduction()))
	}
}

func showInfo() {
	bi, ok := debug.ReadBuildInfo()
	if ok {
		fmt.Print(bi.String())
	}
}

func runMonitor(cfg svcConfig) {
	if cfg.LocalMetricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		err := http.ListenAndServe(cfg.LocalMetricsAddr, nil)
		logbase.Fatal(slog.Default(), "failed to serve metrics", slog.Any("error", err))
	} else {
		select {}
	}
}

func newBACnetReferenceClockIP(log *slog.Logger, zlog *zap.Logger,
	lclk *datetime.SharedClock, localAddr, remoteAddr *net.UDPAddr, dscp uint8,
	filterSize, filterPick int) *bacnetReferenceClockIP {
	c := &bacnetReferenceClockIP{
		log:        zlog,
		lclk:       lclk,
		localAddr:  localAddr,
		remoteAddr: remoteAddr,
	}
	c.bacc = &client.IPClient{
		Log:  zlog,
		DSCP: dscp,
	}
	c.bacc.Filter = client.NewNtimedFilter(log, filterSize, filterPick)
	return c
}

// MeasureClockOffset reports the offset between the engine clock and the
// remote device clock. The wire measurement compares against the host clock;
// the engine differs from it by the tracking offset.
func (c *bacnetReferenceClockIP) MeasureClockOffset(ctx context.Context) (
	time.Time, time.Duration, error) {
	ts, off, err := client.MeasureClockOffsetIP(ctx, c.log, c.bacc, c.localAddr, c.remoteAddr)
	if err != nil {
		return ts, off, err
	}
	return ts, off - c.lclk.TrackingOffset(), nil
}

func (c *bacnetReferenceClockIP) ResetFilter() {
	if c.bacc.Filter != nil {
		c.bacc.Filter.Reset()
	}
}

func loadConfig(configFile string) svcConfig {
	raw, err := os.ReadFile(configFile)
	if err != nil {
		logbase.Fatal(slog.Default(), "failed to load configuration", slog.Any("error", err))
	}
	var cfg svcConfig
	err = toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		logbase.Fatal(slog.Default(), "failed to decode configuration", slog.Any("error", err))
	}
	return cfg
}

func localAddress(cfg svcConfig) *net.UDPAddr {
	if cfg.LocalAddr == "" {
		logbase.Fatal(slog.Default(), "local_address not specified in config")
	}
	localAddr, err := net.ResolveUDPAddr("udp", cfg.LocalAddr)
	if err != nil {
		logbase.Fatal(slog.Default(), "failed to parse local address")
	}
	// The client sockets derive their bind address from the IP.
	if localAddr.IP == nil {
		localAddr.IP = net.IPv4zero
	}
	return localAddr
}

func remoteAddress(cfg svcConfig) *net.UDPAddr {
	if cfg.RemoteAddr == "" {
		logbase.Fatal(slog.Default(), "remote_address not specified in config")
	}
	remoteAddr, err := net.ResolveUDPAddr("udp", cfg.RemoteAddr)
	if err != nil {
		logbase.Fatal(slog.Default(), "failed to parse remote address")
	}
	return remoteAddr
}

func broadcastAddress(cfg svcConfig) netip.AddrPort {
	if cfg.BroadcastAddr == "" {
		return netip.AddrPort{}
	}
	addr, err := netip.ParseAddrPort(cfg.BroadcastAddr)
	if err != nil {
		logbase.Fatal(slog.Default(), "failed to parse broadcast address", slog.Any("error", err))
	}
	return addr
}

func dscp(cfg svcConfig) uint8 {
	if cfg.DSCP > 63 {
		logbase.Fatal(slog.Default(), "invalid differentiated services codepoint value specified in config")
	}
	return cfg.DSCP
}

func filterConfig(cfg svcConfig) (size, pick int) {
	size, pick = cfg.FilterSize, cfg.FilterPick
	if size == 0 {
		size = 1
	}
	if pick == 0 {
		pick = 1
	}
	if size < 1 || pick < 1 || pick > size {
		logbase.Fatal(slog.Default(), "invalid filter configuration specified in config")
	}
	return
}

func piControllerConfig(cfg svcConfig) (kp, ki float64) {
	kp, ki = cfg.PIControllerKP, cfg.PIControllerKI
	if kp == 0 {
		kp = adjustments.PIControllerDefaultPRatio
	}
	if ki == 0 {
		ki = adjustments.PIControllerDefaultIRatio
	}
	if kp < adjustments.PIControllerMinPRatio || kp > adjustments.PIControllerMaxPRatio ||
		ki < adjustments.PIControllerMinIRatio || ki > adjustments.PIControllerMaxIRatio {
		logbase.Fatal(slog.Default(), "invalid PI controller configuration specified in config")
	}
	return
}

func syncConfig(cfg svcConfig) sync.Config {
	const (
		defaultSyncTimeout  = 500 * time.Millisecond
		defaultPollInterval = 1000 * time.Millisecond
	)

	syncCfg := sync.Config{
		SyncTimeout:  timemath.Duration(cfg.SyncTimeout),
		SyncInterval: timemath.Duration(cfg.PollInterval),
	}

	if syncCfg.SyncTimeout == 0 {
		syncCfg.SyncTimeout = defaultSyncTimeout
	}
	if syncCfg.SyncInterval == 0 {
		syncCfg.SyncInterval = defaultPollInterval
	}

	return syncCfg
}

func clockMode(cfg svcConfig) datetime.Config {
	mode := cfg.ClockMode
	if mode == "" {
		mode = clockModeDecoupled
	}
	if mode != clockModeDecoupled && mode != clockModeCoupled {
		logbase.Fatal(slog.Default(), "invalid clock mode value specified in config")
	}
	return datetime.Config{Coupled: mode == clockModeCoupled}
}

func timeZone(cfg svcConfig) *time.Location {
	if cfg.Timezone == "" {
		return nil
	}
	zone, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logbase.Fatal(slog.Default(), "failed to load time zone", slog.Any("error", err))
	}
	return zone
}

func timeSyncRecipients(cfg svcConfig) []netip.AddrPort {
	var recipients []netip.AddrPort
	for _, s := range cfg.TimeSyncRecipients {
		addr, err := netip.ParseAddrPort(s)
		if err != nil {
			logbase.Fatal(slog.Default(), "failed to parse time synchronization recipient",
				slog.String("address", s), slog.Any("error", err))
		}
		recipients = append(recipients, addr)
	}
	return recipients
}

func timeSyncInterval(cfg svcConfig) time.Duration {
	const defaultTimeSyncInterval = 60 * time.Minute
	if cfg.TimeSyncInterval < 0 {
		logbase.Fatal(slog.Default(), "invalid time synchronization interval specified in config")
	}
	if cfg.TimeSyncInterval == 0 {
		return defaultTimeSyncInterval
	}
	return timemath.Duration(cfg.TimeSyncInterval * 60)
}

func intervalOffset(cfg svcConfig) time.Duration {
	if cfg.IntervalOffset < 0 {
		logbase.Fatal(slog.Default(), "invalid interval offset specified in config")
	}
	return timemath.Duration(cfg.IntervalOffset * 60)
}

func localClock(cfg svcConfig, log *slog.Logger) *datetime.SharedClock {
	hostclk := clocks.NewSystemClock(log, timeZone(cfg))
	hostclk.RTCDevice = cfg.RTCDevice
	lclk := datetime.NewSharedClock(datetime.NewClock(hostclk, clockMode(cfg)))
	lclk.Init()
	return lclk
}

func deviceConfig(cfg svcConfig, lclk *datetime.SharedClock) *server.Device {
	instance := cfg.DeviceID
	if instance == 0 {
		instance = defaultDeviceID
	}
	if instance >= apdu.MaxObjectInstance {
		logbase.Fatal(slog.Default(), "invalid device instance specified in config")
	}

	dev := &server.Device{
		Instance:                instance,
		Name:                    cfg.DeviceName,
		Description:             cfg.Description,
		VendorName:              cfg.VendorName,
		VendorID:                vendorID,
		ModelName:               cfg.ModelName,
		FirmwareRevision:        runtime.Version(),
		SoftwareVersion:         "(devel)",
		BroadcastAddr:           broadcastAddress(cfg),
		TimeSyncRecipients:      timeSyncRecipients(cfg),
		TimeSyncUTC:             cfg.TimeSyncUTC,
		TimeSyncIntervalMinutes: uint32(timeSyncInterval(cfg) / time.Minute),
		AlignIntervals:          cfg.AlignIntervals,
		IntervalOffsetMinutes:   uint32(intervalOffset(cfg) / time.Minute),
		Clock:                   lclk,
	}
	if dev.Name == "" {
		dev.Name = defaultDeviceName
	}
	if dev.VendorName == "" {
		dev.VendorName = defaultVendorName
	}
	if dev.ModelName == "" {
		dev.ModelName = defaultModelName
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		dev.SoftwareVersion = bi.Main.Version
	}
	return dev
}

func createClocks(cfg svcConfig, localAddr *net.UDPAddr,
	lclk *datetime.SharedClock, log *slog.Logger) (refClocks []client.ReferenceClock) {
	dscp := dscp(cfg)
	filterSize, filterPick := filterConfig(cfg)

	for _, s := range cfg.ReferenceClocks {
		remoteAddr, err := net.ResolveUDPAddr("udp", s)
		if err != nil {
			logbase.Fatal(slog.Default(), "failed to parse reference clock address",
				slog.String("address", s), slog.Any("error", err))
		}
		refClocks = append(refClocks, newBACnetReferenceClockIP(log, zap.L(), lclk,
			localAddr, remoteAddr, dscp, filterSize, filterPick))
	}

	return
}

func runServer(configFile string) {
	ctx := context.Background()
	log := slog.Default()

	cfg := loadConfig(configFile)
	localAddr := localAddress(cfg)

	lclk := localClock(cfg, log)
	dev := deviceConfig(cfg, lclk)

	server.StartIPServer(ctx, zap.L(), localAddr, dev)

	refClocks := createClocks(cfg, localAddr, lclk, log)

	syncCfg := syncConfig(cfg)
	kp, ki := piControllerConfig(cfg)

	adj := &adjustments.PIController{
		KP:            kp,
		KI:            ki,
		StepThreshold: adjustments.PIControllerDefaultStepThreshold,
	}

	go sync.Run(ctx, log, syncCfg, lclk, adj, refClocks)

	service.StartTimeSyncService(ctx, log, service.TimeSyncConfig{
		LocalAddr:      localAddr,
		Recipients:     dev.TimeSyncRecipients,
		BroadcastAddr:  dev.BroadcastAddr,
		UTC:            dev.TimeSyncUTC,
		Interval:       timeSyncInterval(cfg),
		Align:          dev.AlignIntervals,
		IntervalOffset: intervalOffset(cfg),
	}, &client.IPClient{Log: zap.L(), DSCP: dscp(cfg)}, lclk)

	runMonitor(cfg)
}

func runClient(configFile string) {
	ctx := context.Background()
	log := slog.Default()

	cfg := loadConfig(configFile)
	localAddr := localAddress(cfg)

	lclk := localClock(cfg, log)
	refClocks := createClocks(cfg, localAddr, lclk, log)

	if len(refClocks) == 0 {
		logbase.Fatal(slog.Default(), "no reference clocks specified in config")
	}

	syncCfg := syncConfig(cfg)
	kp, ki := piControllerConfig(cfg)

	adj := &adjustments.PIController{
		KP:            kp,
		KI:            ki,
		StepThreshold: adjustments.PIControllerDefaultStepThreshold,
	}

	go sync.Run(ctx, log, syncCfg, lclk, adj, refClocks)

	runMonitor(cfg)
}

func runToolIP(localAddr, remoteAddr *net.UDPAddr, dscp uint8, periodic bool) {
	log := slog.Default()

	c := &client.IPClient{
		Log:  zap.L(),
		DSCP: dscp,
	}

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		ts, off, err := client.MeasureClockOffsetIP(ctx, zap.L(), c, localAddr, remoteAddr)
		if err != nil {
			log.LogAttrs(ctx, slog.LevelInfo, "failed to measure clock offset",
				slog.Any("remote", remoteAddr), slog.Any("error", err))
		}
		cancel()
		if err == nil {
			fmt.Printf("%s,%+.9f\n", ts.UTC().Format(time.RFC3339), off.Seconds())
		}
		if !periodic {
			break
		}
		time.Sleep(8 * time.Second)
	}
}

func runToolTimeSync(localAddr, remoteAddr *net.UDPAddr, dscp uint8, broadcast, utc bool) {
	log := slog.Default()

	hostclk := clocks.NewSystemClock(log, nil)
	lclk := datetime.NewSharedClock(datetime.NewClock(hostclk, datetime.Config{}))
	lclk.Init()

	c := &client.IPClient{
		Log:  zap.L(),
		DSCP: dscp,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	var dt bacnet.DateTime
	if utc {
		var err error
		dt, err = lclk.UTC()
		if err != nil {
			logbase.Fatal(log, "failed to read clock", slog.Any("error", err))
		}
	} else {
		snap, err := lclk.Local()
		if err != nil {
			logbase.Fatal(log, "failed to read clock", slog.Any("error", err))
		}
		dt = snap.DateTime
	}

	err := client.SendTimeSyncIP(ctx, zap.L(), c, localAddr, remoteAddr, broadcast, utc, dt)
	if err != nil {
		logbase.Fatal(log, "failed to send time synchronization", slog.Any("error", err))
	}
}

func runToolWriteOffset(localAddr, remoteAddr *net.UDPAddr, dscp uint8, utcOffset int) {
	log := slog.Default()

	c := &client.IPClient{
		Log:  zap.L(),
		DSCP: dscp,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	value := bacnet.AppendSigned(nil, int32(utcOffset))
	err := client.WritePropertyIP(ctx, zap.L(), c, localAddr, remoteAddr,
		apdu.PropUTCOffset, value)
	if err != nil {
		logbase.Fatal(log, "failed to write UTC offset", slog.Any("error", err))
	}
}

func runBenchmark(configFile string) {
	cfg := loadConfig(configFile)
	log := slog.Default()

	localAddr := localAddress(cfg)
	remoteAddr := remoteAddress(cfg)

	benchmark.RunIPBenchmark(localAddr, remoteAddr, log)
}

func exitWithUsage() {
	fmt.Println("<usage>")
	os.Exit(1)
}

func main() {
	var (
		quiet         bool
		verbose       bool
		configFile    string
		localAddrStr  string
		remoteAddrStr string
		dscp          uint
		sendTimeSync  bool
		syncUTC       bool
		broadcast     bool
		utcOffsetStr  string
		periodic      bool
	)

	infoFlags := flag.NewFlagSet("info", flag.ExitOnError)
	serverFlags := flag.NewFlagSet("server", flag.ExitOnError)
	clientFlags := flag.NewFlagSet("client", flag.ExitOnError)
	toolFlags := flag.NewFlagSet("tool", flag.ExitOnError)
	benchmarkFlags := flag.NewFlagSet("benchmark", flag.ExitOnError)

	serverFlags.BoolVar(&quiet, "quiet", false, "Disable logging")
	serverFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	serverFlags.StringVar(&configFile, "config", "", "Config file")

	clientFlags.BoolVar(&quiet, "quiet", false, "Disable logging")
	clientFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	clientFlags.StringVar(&configFile, "config", "", "Config file")

	toolFlags.BoolVar(&quiet, "quiet", false, "Disable logging")
	toolFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	toolFlags.StringVar(&localAddrStr, "local", "", "Local address")
	toolFlags.StringVar(&remoteAddrStr, "remote", "", "Remote address")
	toolFlags.UintVar(&dscp, "dscp", 0, "Differentiated services codepoint, must be in range [0, 63]")
	toolFlags.BoolVar(&sendTimeSync, "timesync", false, "Send a time synchronization instead of measuring")
	toolFlags.BoolVar(&syncUTC, "utc", false, "Use the UTC time synchronization service")
	toolFlags.BoolVar(&broadcast, "broadcast", false, "Send the time synchronization as broadcast")
	toolFlags.StringVar(&utcOffsetStr, "utcoffset", "", "Write the given UTC offset in minutes instead of measuring")
	toolFlags.BoolVar(&periodic, "periodic", false, "Perform periodic offset measurements")

	benchmarkFlags.BoolVar(&quiet, "quiet", false, "Disable logging")
	benchmarkFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	benchmarkFlags.StringVar(&configFile, "config", "", "Config file")

	logLevel := func() int {
		if quiet && verbose {
			exitWithUsage()
		}
		if quiet {
			return logLevelQuiet
		}
		if verbose {
			return logLevelVerbose
		}
		return logLevelDefault
	}

	if len(os.Args) < 2 {
		exitWithUsage()
	}

	switch os.Args[1] {
	case infoFlags.Name():
		err := infoFlags.Parse(os.Args[2:])
		if err != nil || infoFlags.NArg() != 0 {
			exitWithUsage()
		}
		showInfo()
	case serverFlags.Name():
		err := serverFlags.Parse(os.Args[2:])
		if err != nil || serverFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(logLevel())
		runServer(configFile)
	case clientFlags.Name():
		err := clientFlags.Parse(os.Args[2:])
		if err != nil || clientFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(logLevel())
		runClient(configFile)
	case toolFlags.Name():
		err := toolFlags.Parse(os.Args[2:])
		if err != nil || toolFlags.NArg() != 0 {
			exitWithUsage()
		}
		if localAddrStr == "" || remoteAddrStr == "" {
			exitWithUsage()
		}
		localAddr, err := net.ResolveUDPAddr("udp", localAddrStr)
		if err != nil {
			exitWithUsage()
		}
		remoteAddr, err := net.ResolveUDPAddr("udp", remoteAddrStr)
		if err != nil {
			exitWithUsage()
		}
		if dscp > 63 {
			exitWithUsage()
		}
		initLogger(logLevel())
		switch {
		case sendTimeSync:
			runToolTimeSync(localAddr, remoteAddr, uint8(dscp), broadcast, syncUTC)
		case utcOffsetStr != "":
			utcOffset, err := strconv.Atoi(utcOffsetStr)
			if err != nil {
				exitWithUsage()
			}
			runToolWriteOffset(localAddr, remoteAddr, uint8(dscp), utcOffset)
		default:
			runToolIP(localAddr, remoteAddr, uint8(dscp), periodic)
		}
	case benchmarkFlags.Name():
		err := benchmarkFlags.Parse(os.Args[2:])
		if err != nil || benchmarkFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(logLevel())
		runBenchmark(configFile)
	case "t":
		runT()
	default:
		exitWithUsage()
	}
}
