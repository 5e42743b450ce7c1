package sync

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestTheilSenIdentityLine(t *testing.T) {
	identityLinePts := []point{{x: -1.0, y: -1.0}, {x: 3.5, y: 3.5}, {x: 11.2, y: 11.2}}

	slope := slope(identityLinePts)
	if slope != 1.0 {
		t.Errorf("slope of y = x line: got %f, want 1.0", slope)
	}

	intercept := intercept(slope, identityLinePts)
	if intercept != 0.0 {
		t.Errorf("intercept of y = x line: got %f, want 0.0", slope)
	}
}

func TestTheilSenConstantOffset(t *testing.T) {
	pts := []point{{x: 0.0, y: 2.5}, {x: 1.0, y: 2.5}, {x: 2.0, y: 2.5}, {x: 3.0, y: 2.5}}

	slope := slope(pts)
	if slope != 0.0 {
		t.Errorf("slope of constant offset: got %f, want 0.0", slope)
	}

	intercept := intercept(slope, pts)
	if intercept != 2.5 {
		t.Errorf("intercept of constant offset: got %f, want 2.5", intercept)
	}
}

func TestTheilSenOutlierResistance(t *testing.T) {
	pts := []point{
		{x: 0.0, y: 0.0}, {x: 1.0, y: 1.0}, {x: 2.0, y: 2.0},
		{x: 3.0, y: 3.0}, {x: 4.0, y: 400.0},
	}

	slope := slope(pts)
	if slope != 1.0 {
		t.Errorf("slope with single outlier: got %f, want 1.0", slope)
	}
}

func TestTheilSenMedian(t *testing.T) {
	odd := []float64{3.0, 1.0, 2.0}
	if m := sortAndGetMedian(odd); m != 2.0 {
		t.Errorf("median of odd length data: got %f, want 2.0", m)
	}

	even := []float64{4.0, 1.0, 3.0, 2.0}
	if m := sortAndGetMedian(even); m != 2.5 {
		t.Errorf("median of even length data: got %f, want 2.5", m)
	}
}

func TestTheilSenWindow(t *testing.T) {
	ts := newTheilSen(slog.New(slog.DiscardHandler))

	ctx := context.Background()
	now := time.Unix(10_000, 0)
	for i := 0; i != theilSenWindow+16; i++ {
		ts.Do(ctx, now, 1500*time.Microsecond)
		now = now.Add(1 * time.Second)
	}
	if len(ts.pts) != theilSenWindow {
		t.Errorf("window length after overflow: got %d, want %d", len(ts.pts), theilSenWindow)
	}

	ts.Reset()
	if len(ts.pts) != 0 {
		t.Errorf("window length after reset: got %d, want 0", len(ts.pts))
	}
	if !ts.start.IsZero() {
		t.Error("start must be cleared by reset")
	}
}
