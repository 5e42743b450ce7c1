package sync

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

const theilSenWindow = 64

// theilSen estimates the drift of the reference time sources relative to the
// host clock from a sliding window of offset measurements. The estimate is
// logged for operators; it does not steer the clock.
type theilSen struct {
	log   *slog.Logger
	start time.Time
	pts   []point
}

func newTheilSen(log *slog.Logger) *theilSen {
	return &theilSen{log: log, pts: make([]point, 0, theilSenWindow)}
}

type point struct {
	x float64
	y float64
}

func sortAndGetMedian(data []float64) float64 {
	if len(data) == 0 {
		panic("invalid argument: array is empty, median undefined")
	}
	sort.Float64s(data)
	if len(data)%2 == 0 {
		return (data[len(data)/2-1] + data[len(data)/2]) / 2
	}
	return data[len(data)/2]
}

func slope(pts []point) float64 {
	if len(pts) == 1 {
		return pts[0].y / pts[0].x
	}

	var medians []float64
	for i, a := range pts {
		for _, b := range pts[i+1:] {
			// Like in the original paper by Sen (1968), ignore pairs with the same x coordinate
			if a.x != b.x {
				medians = append(medians, (a.y-b.y)/(a.x-b.x))
			}
		}
	}

	if len(medians) == 0 {
		panic("invalid inputs: all inputs have the same x coordinate")
	}

	return sortAndGetMedian(medians)
}

func intercept(slope float64, pts []point) float64 {
	var medians []float64
	for _, p := range pts {
		medians = append(medians, p.y-slope*p.x)
	}

	return sortAndGetMedian(medians)
}

func prediction(slope, intercept, x float64) float64 {
	return slope*x + intercept
}

func (l *theilSen) Do(ctx context.Context, now time.Time, offset time.Duration) {
	if l.start.IsZero() {
		l.start = now
	}
	if len(l.pts) == theilSenWindow {
		l.pts = l.pts[1:]
	}
	x := now.Sub(l.start).Seconds()
	l.pts = append(l.pts, point{x: x, y: offset.Seconds()})
	if len(l.pts) < 2 {
		return
	}

	slope := slope(l.pts)
	intercept := intercept(slope, l.pts)
	predictedOffset := prediction(slope, intercept, x)

	l.log.LogAttrs(ctx, slog.LevelDebug, "Theil-Sen estimate",
		slog.Int("# of data points", len(l.pts)),
		slog.Float64("slope", slope),
		slog.Float64("intercept", intercept),
		slog.Float64("predicted offset", predictedOffset),
	)
}

// Reset discards the window. Offsets measured before a clock step no longer
// relate to the clock being tracked.
func (l *theilSen) Reset() {
	l.start = time.Time{}
	l.pts = l.pts[:0]
}
