package bacnet

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDate reads a date in the form "YYYY/MM/DD". A "*" in any position
// stands for the wildcard. The day of week is derived when the date is fully
// specified.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	var d Date
	if parts[0] == "*" {
		d.Year = YearWildcard
	} else {
		y, err := strconv.ParseUint(parts[0], 10, 16)
		if err != nil {
			return Date{}, fmt.Errorf("invalid date %q", s)
		}
		d.Year = uint16(y)
	}
	m, err := parseDateField(parts[1])
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	d.Month = m
	day, err := parseDateField(parts[2])
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	d.Day = day
	if d.WildcardPresent() {
		d.WDay = Wildcard
	} else {
		d.WDay = DayOfWeek(int(d.Year), int(d.Month), int(d.Day))
	}
	return d, nil
}

// ParseTime reads a time in the form "HH:MM:SS.hh". Seconds and hundredths
// may be omitted and default to zero; "*" stands for the wildcard.
func ParseTime(s string) (Time, error) {
	hms, hs, hasHs := strings.Cut(s, ".")
	parts := strings.Split(hms, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Time{}, fmt.Errorf("invalid time %q", s)
	}
	var t Time
	var err error
	if t.Hour, err = parseDateField(parts[0]); err != nil {
		return Time{}, fmt.Errorf("invalid time %q", s)
	}
	if t.Minute, err = parseDateField(parts[1]); err != nil {
		return Time{}, fmt.Errorf("invalid time %q", s)
	}
	if len(parts) == 3 {
		if t.Second, err = parseDateField(parts[2]); err != nil {
			return Time{}, fmt.Errorf("invalid time %q", s)
		}
	}
	if hasHs {
		if t.Hundredths, err = parseDateField(hs); err != nil {
			return Time{}, fmt.Errorf("invalid time %q", s)
		}
	}
	return t, nil
}

// ParseDateTime reads a date and a time separated by a single space.
func ParseDateTime(s string) (DateTime, error) {
	ds, ts, ok := strings.Cut(s, " ")
	if !ok {
		return DateTime{}, fmt.Errorf("invalid date and time %q", s)
	}
	d, err := ParseDate(ds)
	if err != nil {
		return DateTime{}, err
	}
	t, err := ParseTime(ts)
	if err != nil {
		return DateTime{}, err
	}
	return DateTime{Date: d, Time: t}, nil
}

func parseDateField(s string) (uint8, error) {
	if s == "*" {
		return Wildcard, nil
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

func (d Date) String() string {
	var b strings.Builder
	if d.Year == YearWildcard {
		b.WriteString("*")
	} else {
		fmt.Fprintf(&b, "%04d", d.Year)
	}
	b.WriteString("/")
	b.WriteString(formatDateField(d.Month))
	b.WriteString("/")
	b.WriteString(formatDateField(d.Day))
	return b.String()
}

func (t Time) String() string {
	return fmt.Sprintf("%s:%s:%s.%s",
		formatDateField(t.Hour), formatDateField(t.Minute),
		formatDateField(t.Second), formatDateField(t.Hundredths))
}

func (dt DateTime) String() string {
	return dt.Date.String() + " " + dt.Time.String()
}

func formatDateField(v uint8) string {
	if v == Wildcard {
		return "*"
	}
	return fmt.Sprintf("%02d", v)
}
