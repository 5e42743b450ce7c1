// Package clocks provides the host clock implementations behind the device
// clock engine: the operating system clock and a simulated clock for tests
// and demos.
package clocks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/GauiStori/bacnet-stack/core/timebase"
	"github.com/GauiStori/bacnet-stack/net/bacnet"
)

var errClockOutOfRange = errors.New("host time outside representable range")

// SystemClock reads the operating system clock and answers offset and
// daylight saving queries from the configured time zone. With an RTC device
// configured, a host clock outside the representable date range falls back
// to the battery backed clock, which covers hosts that boot without a valid
// system time.
type SystemClock struct {
	Log       *slog.Logger
	Clk       clockwork.Clock
	Zone      *time.Location
	RTCDevice string
}

var _ timebase.HostClock = (*SystemClock)(nil)

func NewSystemClock(log *slog.Logger, zone *time.Location) *SystemClock {
	if zone == nil {
		zone = time.Local
	}
	return &SystemClock{Log: log, Clk: clockwork.NewRealClock(), Zone: zone}
}

func (c *SystemClock) Now() (time.Time, error) {
	now := c.Clk.Now()
	if representable(now) {
		return now, nil
	}
	if c.RTCDevice != "" {
		t, err := readRTC(c.RTCDevice)
		if err != nil {
			c.Log.LogAttrs(context.Background(), slog.LevelError,
				"failed to read RTC",
				slog.String("device", c.RTCDevice),
				slog.Any("error", err),
			)
		} else if representable(t) {
			return t, nil
		}
	}
	return time.Time{}, errClockOutOfRange
}

// UTCOffsetMinutes reports the zone's offset at the given instant in
// minutes west of UTC, compensated back to standard time.
func (c *SystemClock) UTCOffsetMinutes(at time.Time) int {
	local := at.In(c.Zone)
	_, gmtoff := local.Zone()
	minutes := -gmtoff / 60
	if local.IsDST() {
		minutes += 60
	}
	return minutes
}

func (c *SystemClock) IsDST(at time.Time) bool {
	return at.In(c.Zone).IsDST()
}

func representable(t time.Time) bool {
	year := t.UTC().Year()
	return year >= bacnet.EpochYear && year < bacnet.YearWildcard
}
