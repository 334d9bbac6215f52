package domain

import "time"

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// LocationClock reports time.Now in a fixed zone.
type LocationClock struct {
	loc *time.Location
}

func NewLocationClock(loc *time.Location) LocationClock {
	if loc == nil {
		loc = time.UTC
	}
	return LocationClock{loc: loc}
}

func (c LocationClock) Now() time.Time { return time.Now().In(c.loc) }

// Location returns the zone the clock reports in.
func (c LocationClock) Location() *time.Location { return c.loc }

// WeekdayIndex returns the weekday of t with Monday=0 ... Sunday=6.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DateKey formats the calendar date of t (in its own zone) as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// StartOfDay returns midnight of t's date in t's zone.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
