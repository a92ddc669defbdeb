package rapidpush

import (
	"fmt"
	"time"
)

// minuteLayout is the local wall-clock form used to compare instants at
// minute granularity.
const minuteLayout = "2006-01-02 15:04"

// naiveLayout parses the schedule_at form the service expects.
const naiveLayout = "2006-01-02 15:04:05"

// WallClock is a calendar date and time of day without a zone.
type WallClock struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
}

// UTCWallClockOf returns the UTC calendar fields of t, seconds dropped.
func UTCWallClockOf(t time.Time) WallClock {
	u := t.UTC()
	return WallClock{
		Year:   u.Year(),
		Month:  u.Month(),
		Day:    u.Day(),
		Hour:   u.Hour(),
		Minute: u.Minute(),
	}
}

// FormatNaive renders w as "YYYY-MM-DD HH:mm:00" with no zone marker.
// The service reads such strings as UTC, so w is expected to carry UTC digits.
func FormatNaive(w WallClock) string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:00", w.Year, int(w.Month), w.Day, w.Hour, w.Minute)
}

// ParseNaive reads a string produced by FormatNaive back as a UTC instant.
func ParseNaive(s string) (time.Time, error) {
	return time.ParseInLocation(naiveLayout, s, time.UTC)
}

// NormalizeSchedule converts at into the schedule_at value of a notify
// command. Both at and now are truncated to the minute as seen on a wall
// clock in loc (time.Local when nil), and at must land in a later minute.
func NormalizeSchedule(at, now time.Time, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.Local
	}
	atMinute, err := localMinute(at, loc)
	if err != nil {
		return "", err
	}
	nowMinute, err := localMinute(now, loc)
	if err != nil {
		return "", err
	}
	if !atMinute.After(nowMinute) {
		return "", &ScheduleInPastError{At: atMinute, Now: nowMinute}
	}
	return FormatNaive(UTCWallClockOf(at)), nil
}

// localMinute round-trips t through its minute-granularity wall-clock text
// in loc, so seconds and sub-second parts are zeroed in that zone.
func localMinute(t time.Time, loc *time.Location) (time.Time, error) {
	m, err := time.ParseInLocation(minuteLayout, t.In(loc).Format(minuteLayout), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("truncating %s to the minute: %w", t, err)
	}
	return m, nil
}
