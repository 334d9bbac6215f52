package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyDate   = errors.New("empty date")
	ErrInvalidDate = errors.New("invalid date")
	ErrInvalidTime = errors.New("invalid time of day")
)

var (
	dottedDateRe = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)
	isoDateRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ParseStartDate parses "DD.MM.YYYY" or "YYYY-MM-DD" as midnight in loc.
func ParseStartDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyDate
	}
	if loc == nil {
		loc = time.UTC
	}
	var layout string
	switch {
	case dottedDateRe.MatchString(s):
		layout = "02.01.2006"
	case isoDateRe.MatchString(s):
		layout = "2006-01-02"
	default:
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders t as DD.MM.YYYY, or "Не указано" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "Не указано"
	}
	return t.Format("02.01.2006")
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: expected HH:MM, got %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidTime, s)
	}
	return h*60 + m, nil
}

// FormatMinutes returns HH:MM for minutes since midnight (00:00..23:59).
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	h := mins / 60
	m := mins % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (*time.Location, error) {
	return time.LoadLocation(tz)
}
