package clocks

import (
	"errors"
	"time"

	"github.com/GauiStori/bacnet-stack/core/timebase"
)

var (
	errSimulatedFailure = errors.New("simulated clock failure")
	errSimulatedDenial  = errors.New("simulated set denial")
)

// SimulatedClock is a manually driven host clock for tests and the demo
// driver. The zone answers are synthetic: a fixed offset plus either a
// fixed daylight saving flag or a window of instants during which daylight
// saving is considered active.
type SimulatedClock struct {
	now       time.Time
	offsetMin int
	dst       bool
	dstStart  time.Time
	dstEnd    time.Time
	failing   bool
	denySet   bool
	setCalls  []time.Time
}

var _ timebase.HostClock = (*SimulatedClock)(nil)

func NewSimulatedClock(now time.Time) *SimulatedClock {
	return &SimulatedClock{now: now}
}

func (c *SimulatedClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func (c *SimulatedClock) SetNow(t time.Time) {
	c.now = t
}

// SetZone fixes the offset in minutes west of UTC and the daylight saving
// flag reported for every instant.
func (c *SimulatedClock) SetZone(offsetMinutes int, dst bool) {
	c.offsetMin = offsetMinutes
	c.dst = dst
	c.dstStart = time.Time{}
	c.dstEnd = time.Time{}
}

// SetDSTWindow makes IsDST depend on the queried instant instead of the
// fixed flag.
func (c *SimulatedClock) SetDSTWindow(start, end time.Time) {
	c.dstStart = start
	c.dstEnd = end
}

// Fail makes Now return an error until cleared.
func (c *SimulatedClock) Fail(fail bool) {
	c.failing = fail
}

// DenySet makes Set return an error, standing in for missing privileges.
func (c *SimulatedClock) DenySet(deny bool) {
	c.denySet = deny
}

// SetCalls returns the instants passed to Set, in order.
func (c *SimulatedClock) SetCalls() []time.Time {
	return c.setCalls
}

func (c *SimulatedClock) Now() (time.Time, error) {
	if c.failing {
		return time.Time{}, errSimulatedFailure
	}
	return c.now, nil
}

func (c *SimulatedClock) UTCOffsetMinutes(at time.Time) int {
	return c.offsetMin
}

func (c *SimulatedClock) IsDST(at time.Time) bool {
	if !c.dstStart.IsZero() {
		return !at.Before(c.dstStart) && at.Before(c.dstEnd)
	}
	return c.dst
}

func (c *SimulatedClock) Set(t time.Time) error {
	if c.denySet {
		return errSimulatedDenial
	}
	c.setCalls = append(c.setCalls, t)
	c.now = t
	return nil
}
