// Package timebase defines the host clock contract the device clock engine
// builds on.
package timebase

import "time"

// HostClock is the engine's view of the operating system clock. There is no
// process wide clock registration; whoever needs a clock holds a reference.
type HostClock interface {
	// Now returns the current host instant, or an error when the host
	// clock cannot produce a usable reading.
	Now() (time.Time, error)
	// UTCOffsetMinutes reports the host zone's offset at the given
	// instant in minutes west of UTC, compensated to standard time, so
	// the value is stable across daylight saving transitions.
	UTCOffsetMinutes(at time.Time) int
	// IsDST reports whether daylight saving is in effect in the host
	// zone at the given instant.
	IsDST(at time.Time) bool
	// Set sets the host clock. Implementations return an error when the
	// platform or privileges do not allow it.
	Set(t time.Time) error
}
