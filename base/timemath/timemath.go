// Package timemath provides conversions between time.Duration values and
// the float64 second quantities used in filter and controller math.
package timemath

import "time"

func Seconds(d time.Duration) float64 {
	return float64(d) / float64(time.Second)
}

func Duration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func Abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func Inv(d time.Duration) time.Duration {
	return -d
}

// Midpoint returns the point halfway between x and y without overflowing.
func Midpoint(x, y time.Duration) time.Duration {
	return x + (y-x)/2
}
