//go:build !linux

package clocks

import (
	"errors"
	"time"
)

var errNotSupported = errors.New("not supported on this platform")

func (c *SystemClock) Set(t time.Time) error {
	return errNotSupported
}

func readRTC(device string) (time.Time, error) {
	return time.Time{}, errNotSupported
}
