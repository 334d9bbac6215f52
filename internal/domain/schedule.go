package domain

import (
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ScheduleEntry binds a group to the end of its class on one weekday.
// It recurs every week; there is no date component.
type ScheduleEntry struct {
	Group      Group
	Weekday    int // 0=Mon..6=Sun
	EndMinutes int // minutes from midnight
}

// ClassEnd returns the instant the entry's class ends on the date of day,
// interpreted in loc.
func (e ScheduleEntry) ClassEnd(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), e.EndMinutes/60, e.EndMinutes%60, 0, 0, loc)
}

func (e ScheduleEntry) String() string {
	return fmt.Sprintf("%s/%d@%s", e.Group, e.Weekday, FormatMinutes(e.EndMinutes))
}

// DefaultSchedule is the seed used when the schedule table is empty:
// the weekday group finishes at 18:00 Monday to Friday, the weekend group
// at 14:00 on Saturday.
func DefaultSchedule() []ScheduleEntry {
	entries := make([]ScheduleEntry, 0, 6)
	for wd := 0; wd <= 4; wd++ {
		entries = append(entries, ScheduleEntry{Group: GroupWeekday, Weekday: wd, EndMinutes: 18 * 60})
	}
	entries = append(entries, ScheduleEntry{Group: GroupWeekend, Weekday: 5, EndMinutes: 14 * 60})
	return entries
}

type scheduleFile struct {
	Entries []scheduleFileEntry `yaml:"entries" validate:"required,min=1,dive"`
}

type scheduleFileEntry struct {
	Group   string `yaml:"group" validate:"required,oneof=weekday weekend"`
	Weekday int    `yaml:"weekday" validate:"min=0,max=6"`
	End     string `yaml:"end" validate:"required"`
}

// LoadSchedule reads a YAML seed table:
//
//	entries:
//	  - {group: weekday, weekday: 0, end: "18:00"}
func LoadSchedule(r io.Reader) ([]ScheduleEntry, error) {
	var f scheduleFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("validate schedule: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Entries))
	out := make([]ScheduleEntry, 0, len(f.Entries))
	for i, fe := range f.Entries {
		mins, err := ParseClock(fe.End)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		key := fmt.Sprintf("%s/%d", fe.Group, fe.Weekday)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("entry %d: duplicate group/weekday %s", i, key)
		}
		seen[key] = struct{}{}
		out = append(out, ScheduleEntry{Group: Group(fe.Group), Weekday: fe.Weekday, EndMinutes: mins})
	}
	return out, nil
}
