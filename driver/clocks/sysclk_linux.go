package clocks

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Set sets the system clock and, when an RTC device is configured, writes
// the new time through to it as well.
func (c *SystemClock) Set(t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	if err := unix.Settimeofday(&tv); err != nil {
		return err
	}
	if c.RTCDevice != "" {
		if err := writeRTC(c.RTCDevice, t); err != nil {
			c.Log.LogAttrs(context.Background(), slog.LevelInfo,
				"failed to update RTC",
				slog.String("device", c.RTCDevice),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func readRTC(device string) (time.Time, error) {
	f, err := os.Open(device)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()
	rt, err := unix.IoctlGetRTCTime(int(f.Fd()))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(int(rt.Year)+1900, time.Month(rt.Mon+1), int(rt.Mday),
		int(rt.Hour), int(rt.Min), int(rt.Sec), 0, time.UTC), nil
}

func writeRTC(device string, t time.Time) error {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	u := t.UTC()
	rt := unix.RTCTime{
		Sec:  int32(u.Second()),
		Min:  int32(u.Minute()),
		Hour: int32(u.Hour()),
		Mday: int32(u.Day()),
		Mon:  int32(u.Month() - 1),
		Year: int32(u.Year() - 1900),
	}
	return unix.IoctlSetRTCTime(int(f.Fd()), &rt)
}
