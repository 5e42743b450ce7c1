package measurements

import (
	"slices"
	"time"

	"github.com/GauiStori/bacnet-stack/base/timemath"
)

// Measurement is the outcome of one clock offset measurement against a
// reference device.
type Measurement struct {
	Timestamp time.Time
	Offset    time.Duration
	Error     error
}

// FaultTolerantMidpoint combines the usable offsets by discarding the f
// lowest and the f highest values, f = (n - 1) / 3, and taking the midpoint
// of the remaining extremes. It reports false when no measurement is usable.
func FaultTolerantMidpoint(ms []Measurement) (time.Duration, bool) {
	off := make([]time.Duration, 0, len(ms))
	for _, m := range ms {
		if m.Error == nil {
			off = append(off, m.Offset)
		}
	}
	if len(off) == 0 {
		return 0, false
	}
	slices.Sort(off)
	f := (len(off) - 1) / 3
	return timemath.Midpoint(off[f], off[len(off)-1-f]), true
}
