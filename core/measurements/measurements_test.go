package measurements

import (
	"errors"
	"testing"
	"time"
)

func TestFaultTolerantMidpointNoUsableMeasurements(t *testing.T) {
	if _, ok := FaultTolerantMidpoint(nil); ok {
		t.Error("no measurements must not produce an offset")
	}

	ms := []Measurement{
		{Error: errors.New("measurement failed")},
		{Error: errors.New("measurement failed")},
	}
	if _, ok := FaultTolerantMidpoint(ms); ok {
		t.Error("failed measurements must not produce an offset")
	}
}

func TestFaultTolerantMidpointSingle(t *testing.T) {
	ms := []Measurement{{Offset: 250 * time.Microsecond}}

	off, ok := FaultTolerantMidpoint(ms)
	if !ok || off != 250*time.Microsecond {
		t.Errorf("got (%v, %t), want (250us, true)", off, ok)
	}
}

func TestFaultTolerantMidpointTrimsExtremes(t *testing.T) {
	ms := []Measurement{
		{Offset: 400 * time.Millisecond},
		{Offset: 2 * time.Millisecond},
		{Offset: 1 * time.Millisecond},
		{Offset: 3 * time.Millisecond},
	}

	off, ok := FaultTolerantMidpoint(ms)
	if !ok || off != 2500*time.Microsecond {
		t.Errorf("got (%v, %t), want (2.5ms, true)", off, ok)
	}
}

func TestFaultTolerantMidpointSkipsFailed(t *testing.T) {
	ms := []Measurement{
		{Offset: 10 * time.Millisecond},
		{Offset: -30 * time.Millisecond, Error: errors.New("measurement failed")},
		{Offset: 20 * time.Millisecond},
	}

	off, ok := FaultTolerantMidpoint(ms)
	if !ok || off != 15*time.Millisecond {
		t.Errorf("got (%v, %t), want (15ms, true)", off, ok)
	}
}
