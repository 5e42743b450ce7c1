// Package bacnet implements the BACnet date and time application values:
// calendar arithmetic on the 1900 epoch, wildcard field handling, ASCII
// forms, and the application tag codec used by the services that carry them.
package bacnet

import "time"

// Reference: ASHRAE 135, clause 20.2, Date and Time application values

const (
	EpochYear = 1900 // 1900-01-01 is day zero, a Monday

	Wildcard     = 0xff
	YearWildcard = EpochYear + Wildcard

	MonthOdd  = 13
	MonthEven = 14

	DayLastOfMonth = 32
	DayOddOfMonth  = 33
	DayEvenOfMonth = 34

	WeekOfMonthLast = 6
)

const (
	minutesPerDay = 24 * 60
	secondsPerDay = 24 * 60 * 60
)

// Date holds a BACnet calendar date. Year is the full year; on the wire it
// travels as an offset from 1900. WDay runs 1 through 7, Monday first.
type Date struct {
	Year  uint16
	Month uint8
	Day   uint8
	WDay  uint8
}

// Time holds a BACnet time of day with hundredths resolution.
type Time struct {
	Hour       uint8
	Minute     uint8
	Second     uint8
	Hundredths uint8
}

type DateTime struct {
	Date Date
	Time Time
}

// DateRange is an inclusive range of dates. Wildcard fields in either end
// leave that part of the range open.
type DateRange struct {
	Start Date
	End   Date
}

// WeekNDay selects recurring days: a month (1..12, odd, even or any), a week
// of the month (1..5, the last seven days, or any) and a day of week.
type WeekNDay struct {
	Month       uint8
	WeekOfMonth uint8
	WDay        uint8
}

func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// MonthDays returns the number of days in the given month, or 0 if the month
// is not 1 through 12.
func MonthDays(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	}
	return 0
}

func YMDIsValid(year, month, day int) bool {
	return year >= EpochYear && year < YearWildcard &&
		day >= 1 && day <= MonthDays(year, month)
}

func ymdToDaysSinceEpoch(year, month, day int) uint32 {
	days := uint32(0)
	for y := EpochYear; y < year; y++ {
		days += 365
		if IsLeapYear(y) {
			days++
		}
	}
	for m := 1; m < month; m++ {
		days += uint32(MonthDays(year, m))
	}
	return days + uint32(day-1)
}

// DayOfWeek returns the day of week of a calendar day, 1 = Monday through
// 7 = Sunday.
func DayOfWeek(year, month, day int) uint8 {
	return uint8(ymdToDaysSinceEpoch(year, month, day)%7) + 1
}

func (d Date) DaysSinceEpoch() uint32 {
	return ymdToDaysSinceEpoch(int(d.Year), int(d.Month), int(d.Day))
}

func DateFromDaysSinceEpoch(days uint32) Date {
	wday := uint8(days%7) + 1
	year := EpochYear
	for {
		ydays := uint32(365)
		if IsLeapYear(year) {
			ydays = 366
		}
		if days < ydays {
			break
		}
		days -= ydays
		year++
	}
	month := 1
	for {
		mdays := uint32(MonthDays(year, month))
		if days < mdays {
			break
		}
		days -= mdays
		month++
	}
	return Date{Year: uint16(year), Month: uint8(month), Day: uint8(days + 1), WDay: wday}
}

// DayOfYear returns the ordinal day within the date's year, 1 through 366.
func (d Date) DayOfYear() uint16 {
	days := uint16(0)
	for m := 1; m < int(d.Month); m++ {
		days += uint16(MonthDays(int(d.Year), m))
	}
	return days + uint16(d.Day)
}

func DateFromDayOfYear(year int, day uint16) Date {
	month := 1
	for {
		mdays := uint16(MonthDays(year, month))
		if day <= mdays {
			break
		}
		day -= mdays
		month++
	}
	return Date{Year: uint16(year), Month: uint8(month), Day: uint8(day),
		WDay: DayOfWeek(year, month, int(day))}
}

func (d Date) IsValid() bool {
	return YMDIsValid(int(d.Year), int(d.Month), int(d.Day))
}

func (t Time) SecondsSinceMidnight() uint32 {
	return uint32(t.Hour)*3600 + uint32(t.Minute)*60 + uint32(t.Second)
}

func (t Time) MinutesSinceMidnight() uint16 {
	return uint16(t.Hour)*60 + uint16(t.Minute)
}

func TimeFromSecondsSinceMidnight(seconds uint32) Time {
	return Time{
		Hour:   uint8(seconds / 3600),
		Minute: uint8(seconds % 3600 / 60),
		Second: uint8(seconds % 60),
	}
}

func (t Time) IsValid() bool {
	return t.Hour <= 23 && t.Minute <= 59 && t.Second <= 59 && t.Hundredths <= 99
}

func (dt DateTime) IsValid() bool {
	return dt.Date.IsValid() && dt.Time.IsValid()
}

// Compare orders two dates by year, month and day, ignoring the day of week.
// The result is negative if d precedes e, zero if equal, positive otherwise.
func (d Date) Compare(e Date) int {
	if c := int(d.Year) - int(e.Year); c != 0 {
		return c
	}
	if c := int(d.Month) - int(e.Month); c != 0 {
		return c
	}
	return int(d.Day) - int(e.Day)
}

func (t Time) Compare(u Time) int {
	if c := int(t.Hour) - int(u.Hour); c != 0 {
		return c
	}
	if c := int(t.Minute) - int(u.Minute); c != 0 {
		return c
	}
	if c := int(t.Second) - int(u.Second); c != 0 {
		return c
	}
	return int(t.Hundredths) - int(u.Hundredths)
}

func (dt DateTime) Compare(e DateTime) int {
	if c := dt.Date.Compare(e.Date); c != 0 {
		return c
	}
	return dt.Time.Compare(e.Time)
}

// WildcardCompare orders two dates like Compare but skips any field that is
// a wildcard in either operand.
func (d Date) WildcardCompare(e Date) int {
	if d.Year != YearWildcard && e.Year != YearWildcard {
		if c := int(d.Year) - int(e.Year); c != 0 {
			return c
		}
	}
	if d.Month != Wildcard && e.Month != Wildcard {
		if c := int(d.Month) - int(e.Month); c != 0 {
			return c
		}
	}
	if d.Day != Wildcard && e.Day != Wildcard {
		if c := int(d.Day) - int(e.Day); c != 0 {
			return c
		}
	}
	return 0
}

func (t Time) WildcardCompare(u Time) int {
	if t.Hour != Wildcard && u.Hour != Wildcard {
		if c := int(t.Hour) - int(u.Hour); c != 0 {
			return c
		}
	}
	if t.Minute != Wildcard && u.Minute != Wildcard {
		if c := int(t.Minute) - int(u.Minute); c != 0 {
			return c
		}
	}
	if t.Second != Wildcard && u.Second != Wildcard {
		if c := int(t.Second) - int(u.Second); c != 0 {
			return c
		}
	}
	if t.Hundredths != Wildcard && u.Hundredths != Wildcard {
		if c := int(t.Hundredths) - int(u.Hundredths); c != 0 {
			return c
		}
	}
	return 0
}

func (dt DateTime) WildcardCompare(e DateTime) int {
	if c := dt.Date.WildcardCompare(e.Date); c != 0 {
		return c
	}
	return dt.Time.WildcardCompare(e.Time)
}

func DateWildcard() Date {
	return Date{Year: YearWildcard, Month: Wildcard, Day: Wildcard, WDay: Wildcard}
}

func TimeWildcard() Time {
	return Time{Hour: Wildcard, Minute: Wildcard, Second: Wildcard, Hundredths: Wildcard}
}

func DateTimeWildcard() DateTime {
	return DateTime{Date: DateWildcard(), Time: TimeWildcard()}
}

func (d Date) IsWildcard() bool {
	return d.Year == YearWildcard && d.Month == Wildcard &&
		d.Day == Wildcard && d.WDay == Wildcard
}

func (t Time) IsWildcard() bool {
	return t.Hour == Wildcard && t.Minute == Wildcard &&
		t.Second == Wildcard && t.Hundredths == Wildcard
}

func (dt DateTime) IsWildcard() bool {
	return dt.Date.IsWildcard() && dt.Time.IsWildcard()
}

// WildcardPresent reports whether any field falls outside its plain calendar
// range, which covers the 0xff wildcard as well as the odd/even/last month
// and day selectors.
func (d Date) WildcardPresent() bool {
	return d.Year == YearWildcard || d.Month > 12 || d.Day > 31 || d.WDay > 7
}

func (t Time) WildcardPresent() bool {
	return t.Hour > 23 || t.Minute > 59 || t.Second > 59 || t.Hundredths > 99
}

func (dt DateTime) WildcardPresent() bool {
	return dt.Date.WildcardPresent() || dt.Time.WildcardPresent()
}

// AddMinutes returns the date and time shifted by the given signed number of
// minutes. Seconds and hundredths carry over unchanged.
func (dt DateTime) AddMinutes(minutes int32) DateTime {
	total := int64(dt.Date.DaysSinceEpoch())*minutesPerDay +
		int64(dt.Time.MinutesSinceMidnight()) + int64(minutes)
	days := total / minutesPerDay
	rem := total % minutesPerDay
	if rem < 0 {
		days--
		rem += minutesPerDay
	}
	return DateTime{
		Date: DateFromDaysSinceEpoch(uint32(days)),
		Time: Time{
			Hour:       uint8(rem / 60),
			Minute:     uint8(rem % 60),
			Second:     dt.Time.Second,
			Hundredths: dt.Time.Hundredths,
		},
	}
}

// SecondsSinceEpoch counts whole seconds from 1900-01-01T00:00:00, dropping
// the hundredths.
func (dt DateTime) SecondsSinceEpoch() uint64 {
	return uint64(dt.Date.DaysSinceEpoch())*secondsPerDay +
		uint64(dt.Time.SecondsSinceMidnight())
}

func DateTimeFromSecondsSinceEpoch(seconds uint64) DateTime {
	return DateTime{
		Date: DateFromDaysSinceEpoch(uint32(seconds / secondsPerDay)),
		Time: TimeFromSecondsSinceMidnight(uint32(seconds % secondsPerDay)),
	}
}

// LocalToUTC converts a local date and time to UTC. The offset is in minutes
// west of UTC, matching the UTC_Offset device property; dstAdjustMinutes is
// the daylight saving adjustment in effect, typically 60 or 0.
func LocalToUTC(local DateTime, utcOffsetMinutes, dstAdjustMinutes int) DateTime {
	return local.AddMinutes(int32(utcOffsetMinutes - dstAdjustMinutes))
}

func UTCToLocal(utc DateTime, utcOffsetMinutes, dstAdjustMinutes int) DateTime {
	return utc.AddMinutes(int32(dstAdjustMinutes - utcOffsetMinutes))
}

// TimeFromDateTime converts calendar fields to an instant, reading them as
// UTC. Hundredths become the sub-second part.
func TimeFromDateTime(dt DateTime) time.Time {
	return time.Date(int(dt.Date.Year), time.Month(dt.Date.Month), int(dt.Date.Day),
		int(dt.Time.Hour), int(dt.Time.Minute), int(dt.Time.Second),
		int(dt.Time.Hundredths)*1e7, time.UTC)
}

// DateTimeFromTime converts an instant to its calendar fields in the
// instant's location, deriving the day of week.
func DateTimeFromTime(t time.Time) DateTime {
	year, month, day := t.Date()
	hour, minute, second := t.Clock()
	return DateTime{
		Date: Date{
			Year:  uint16(year),
			Month: uint8(month),
			Day:   uint8(day),
			WDay:  DayOfWeek(year, int(month), day),
		},
		Time: Time{
			Hour:       uint8(hour),
			Minute:     uint8(minute),
			Second:     uint8(second),
			Hundredths: uint8(t.Nanosecond() / 1e7),
		},
	}
}

// Contains reports whether the date falls within the range, wildcard fields
// matching anything.
func (r DateRange) Contains(d Date) bool {
	return r.Start.WildcardCompare(d) <= 0 && r.End.WildcardCompare(d) >= 0
}

// Matches reports whether the date satisfies the month, week of month and
// day of week selectors.
func (w WeekNDay) Matches(d Date) bool {
	switch w.Month {
	case Wildcard:
	case MonthOdd:
		if d.Month%2 != 1 {
			return false
		}
	case MonthEven:
		if d.Month%2 != 0 {
			return false
		}
	default:
		if w.Month != d.Month {
			return false
		}
	}
	switch w.WeekOfMonth {
	case Wildcard:
	case WeekOfMonthLast:
		if int(d.Day) <= MonthDays(int(d.Year), int(d.Month))-7 {
			return false
		}
	default:
		if (int(d.Day)-1)/7+1 != int(w.WeekOfMonth) {
			return false
		}
	}
	return w.WDay == Wildcard || w.WDay == d.WDay
}
