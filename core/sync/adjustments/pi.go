// Package adjustments turns measured clock offsets into corrections to be
// applied to the engine clock.
package adjustments

import (
	"time"

	"github.com/GauiStori/bacnet-stack/base/timemath"
)

const (
	PIControllerMinPRatio     = 0.01
	PIControllerDefaultPRatio = 0.1
	PIControllerMaxPRatio     = 1.0
	PIControllerMinIRatio     = 0.005
	PIControllerDefaultIRatio = 0.02
	PIControllerMaxIRatio     = 0.5

	PIControllerDefaultStepThreshold = 10 * time.Millisecond
)

// Adjustment computes the correction for one measured offset. step reports
// that the offset exceeded the step threshold; the controller state has been
// discarded and the caller must treat the correction as a step, not a slew.
type Adjustment interface {
	Do(offset time.Duration) (corr time.Duration, step bool)
}

// PIController derives corrections proportional to the measured offset and
// to its accumulated integral. KP and KI must be set; a zero StepThreshold
// disables stepping.
type PIController struct {
	KP            float64
	KI            float64
	StepThreshold time.Duration

	integral float64
}

var _ Adjustment = (*PIController)(nil)

func (c *PIController) Do(offset time.Duration) (time.Duration, bool) {
	if c.StepThreshold != 0 && timemath.Abs(offset) >= c.StepThreshold {
		c.integral = 0
		return offset, true
	}
	o := timemath.Seconds(offset)
	c.integral += c.KI * o
	return timemath.Duration(c.KP*o + c.integral), false
}
