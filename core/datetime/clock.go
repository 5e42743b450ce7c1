// Package datetime implements the device clock behind the Local_Time,
// Local_Date, UTC_Offset and Daylight_Savings_Status properties and the two
// time synchronization services.
//
// In decoupled mode the engine never touches the host clock: BACnet time is
// kept as a signed offset from the host instant, with optional overrides for
// the UTC offset and the daylight saving flag, so the device can follow a
// BACnet time authority while the host stays on its own discipline. In
// coupled mode reads and sets go straight to the host clock and the
// overrides are rejected.
package datetime

import (
	"errors"
	"time"

	"github.com/GauiStori/bacnet-stack/core/timebase"
	"github.com/GauiStori/bacnet-stack/net/bacnet"
)

var (
	ErrOutOfRange       = errors.New("value out of range")
	ErrWriteDenied      = errors.New("write access denied")
	ErrClockUnavailable = errors.New("host clock unavailable")
)

const (
	// UTCOffsetLimit bounds the UTC_Offset property to half a day either
	// side of UTC, in minutes.
	UTCOffsetLimit = 720

	// fallbackUTCOffsetMinutes is reported when the host clock cannot be
	// read, matching a Pacific standard time device default.
	fallbackUTCOffsetMinutes = 8 * 60
)

type Config struct {
	// Coupled makes the host clock authoritative: absolute sets are
	// forwarded to it and the override properties become read only.
	Coupled bool
}

// Clock derives the BACnet device time from a host clock. Methods are not
// safe for concurrent use; the embedder serializes access.
type Clock struct {
	host    timebase.HostClock
	coupled bool

	trackingOffset time.Duration

	utcOffsetMin int
	utcOffsetSet bool

	dst    bool
	dstSet bool
}

func NewClock(host timebase.HostClock, cfg Config) *Clock {
	if host == nil {
		panic("host clock must not be nil")
	}
	return &Clock{host: host, coupled: cfg.Coupled}
}

// Init resets the clock to its startup state: no tracking offset and no
// overrides. A device restart therefore cancels any overrides written
// earlier; in coupled mode reads follow the live host state, so nothing
// else needs seeding.
func (c *Clock) Init() {
	c.trackingOffset = 0
	c.utcOffsetMin = 0
	c.utcOffsetSet = false
	c.dst = false
	c.dstSet = false
}

func (c *Clock) Coupled() bool {
	return c.coupled
}

// TrackingOffset returns the current offset between BACnet time and the
// host clock.
func (c *Clock) TrackingOffset() time.Duration {
	return c.trackingOffset
}

// Snapshot is one consistent view of the local device clock.
type Snapshot struct {
	DateTime         bacnet.DateTime
	UTCOffsetMinutes int
	DST              bool
}

// Local reads the local date and time. The tracked instant is projected to
// standard local time by subtracting the effective UTC offset, then shifted
// one hour forward when daylight saving is in effect; without a DST override
// that decision is made at the projected instant, not at the host instant.
// When the host clock fails the canonical fallback snapshot is returned
// together with ErrClockUnavailable.
func (c *Clock) Local() (Snapshot, error) {
	now, err := c.host.Now()
	if err != nil {
		return fallbackSnapshot(), ErrClockUnavailable
	}
	instant := now.Add(c.trackingOffset)
	offsetMin := c.effectiveUTCOffsetMinutes(now)
	instant = instant.Add(-time.Duration(offsetMin) * time.Minute)
	var dst bool
	if c.dstSet {
		dst = c.dst
	} else {
		dst = c.host.IsDST(instant)
	}
	if dst {
		instant = instant.Add(time.Hour)
	}
	return Snapshot{
		DateTime:         decompose(instant),
		UTCOffsetMinutes: offsetMin,
		DST:              dst,
	}, nil
}

// UTC reads the tracked instant without any offset or daylight saving
// adjustment.
func (c *Clock) UTC() (bacnet.DateTime, error) {
	now, err := c.host.Now()
	if err != nil {
		return fallbackSnapshot().DateTime, ErrClockUnavailable
	}
	return decompose(now.Add(c.trackingOffset)), nil
}

// SetLocal sets the clock from local date and time fields, as written by the
// TimeSynchronization service or the Local_Time and Local_Date properties.
// Both overrides are cleared first and stay cleared even when the rest of
// the operation fails. The fields are interpreted against the host zone's
// standard offset at the present host instant, with the daylight saving
// decision made at the instant being set.
func (c *Clock) SetLocal(d bacnet.Date, t bacnet.Time) error {
	c.utcOffsetSet = false
	c.dstSet = false
	naive := compose(bacnet.DateTime{Date: d, Time: t})
	if naive.Unix() <= 0 {
		return ErrOutOfRange
	}
	now, err := c.host.Now()
	if err != nil {
		return ErrClockUnavailable
	}
	instant := naive.Add(time.Duration(c.host.UTCOffsetMinutes(now)) * time.Minute)
	if c.host.IsDST(naive) {
		instant = instant.Add(-time.Hour)
	}
	if c.coupled {
		if err := c.host.Set(instant); err != nil {
			return ErrWriteDenied
		}
		return nil
	}
	c.trackingOffset = instant.Sub(now)
	return nil
}

// SetUTC sets the clock from UTC fields, as written by the
// UTCTimeSynchronization service. The overrides are left alone.
func (c *Clock) SetUTC(d bacnet.Date, t bacnet.Time) error {
	naive := compose(bacnet.DateTime{Date: d, Time: t})
	if naive.Unix() <= 0 {
		return ErrOutOfRange
	}
	if c.coupled {
		if err := c.host.Set(naive); err != nil {
			return ErrWriteDenied
		}
		return nil
	}
	now, err := c.host.Now()
	if err != nil {
		return ErrClockUnavailable
	}
	c.trackingOffset = naive.Sub(now)
	return nil
}

// Adjust shifts the clock by a signed offset without touching the
// overrides. The follower loop applies measured corrections through it.
func (c *Clock) Adjust(offset time.Duration) error {
	if c.coupled {
		now, err := c.host.Now()
		if err != nil {
			return ErrClockUnavailable
		}
		if err := c.host.Set(now.Add(offset)); err != nil {
			return ErrWriteDenied
		}
		return nil
	}
	c.trackingOffset += offset
	return nil
}

// SetUTCOffset stores a UTC offset override in minutes west of UTC. The
// range check comes before the coupled mode check.
func (c *Clock) SetUTCOffset(minutes int) error {
	if minutes < -UTCOffsetLimit || minutes > UTCOffsetLimit {
		return ErrOutOfRange
	}
	if c.coupled {
		return ErrWriteDenied
	}
	c.utcOffsetMin = minutes
	c.utcOffsetSet = true
	return nil
}

// UTCOffset returns the override when one is set, and otherwise the host
// zone's offset at the present host instant. The tracking offset plays no
// part here.
func (c *Clock) UTCOffset() int {
	if c.utcOffsetSet {
		return c.utcOffsetMin
	}
	now, err := c.host.Now()
	if err != nil {
		return fallbackUTCOffsetMinutes
	}
	return c.host.UTCOffsetMinutes(now)
}

// SetDST stores a daylight saving override.
func (c *Clock) SetDST(active bool) error {
	if c.coupled {
		return ErrWriteDenied
	}
	c.dst = active
	c.dstSet = true
	return nil
}

// DST returns the override when one is set, and otherwise the host zone's
// daylight saving state at the tracked instant projected by the effective
// UTC offset.
func (c *Clock) DST() bool {
	if c.dstSet {
		return c.dst
	}
	now, err := c.host.Now()
	if err != nil {
		return false
	}
	instant := now.Add(c.trackingOffset).
		Add(-time.Duration(c.UTCOffset()) * time.Minute)
	return c.host.IsDST(instant)
}

func (c *Clock) effectiveUTCOffsetMinutes(hostNow time.Time) int {
	if c.utcOffsetSet {
		return c.utcOffsetMin
	}
	return c.host.UTCOffsetMinutes(hostNow)
}

func fallbackSnapshot() Snapshot {
	return Snapshot{
		DateTime: bacnet.DateTime{
			Date: bacnet.Date{Year: 1900, Month: 1, Day: 1, WDay: 1},
		},
		UTCOffsetMinutes: fallbackUTCOffsetMinutes,
	}
}

func compose(dt bacnet.DateTime) time.Time {
	return bacnet.TimeFromDateTime(dt)
}

func decompose(t time.Time) bacnet.DateTime {
	return bacnet.DateTimeFromTime(t.UTC())
}
