package adjustments

import (
	"testing"
	"time"

	"github.com/GauiStori/bacnet-stack/base/timemath"
)

func newTestController() *PIController {
	return &PIController{
		KP:            PIControllerDefaultPRatio,
		KI:            PIControllerDefaultIRatio,
		StepThreshold: PIControllerDefaultStepThreshold,
	}
}

func TestPIControllerSteps(t *testing.T) {
	c := newTestController()

	corr, step := c.Do(20 * time.Millisecond)
	if !step || corr != 20*time.Millisecond {
		t.Errorf("got (%v, %t), want (20ms, true)", corr, step)
	}

	corr, step = c.Do(-20 * time.Millisecond)
	if !step || corr != -20*time.Millisecond {
		t.Errorf("got (%v, %t), want (-20ms, true)", corr, step)
	}
}

func TestPIControllerSlews(t *testing.T) {
	c := newTestController()

	corr, step := c.Do(5 * time.Millisecond)
	if step {
		t.Fatal("offset below threshold must not step")
	}
	if d := timemath.Abs(corr - 600*time.Microsecond); d > time.Microsecond {
		t.Errorf("first correction: got %v, want about 600us", corr)
	}

	corr, step = c.Do(5 * time.Millisecond)
	if step {
		t.Fatal("offset below threshold must not step")
	}
	if d := timemath.Abs(corr - 700*time.Microsecond); d > time.Microsecond {
		t.Errorf("second correction: got %v, want about 700us", corr)
	}
}

func TestPIControllerStepResetsIntegral(t *testing.T) {
	c := newTestController()

	c.Do(5 * time.Millisecond)
	if _, step := c.Do(50 * time.Millisecond); !step {
		t.Fatal("offset above threshold must step")
	}

	corr, step := c.Do(0)
	if step || corr != 0 {
		t.Errorf("got (%v, %t), want (0, false) after integral reset", corr, step)
	}
}

func TestPIControllerZeroThresholdNeverSteps(t *testing.T) {
	c := &PIController{KP: PIControllerDefaultPRatio, KI: PIControllerDefaultIRatio}

	if _, step := c.Do(5 * time.Second); step {
		t.Error("zero threshold must disable stepping")
	}
}
