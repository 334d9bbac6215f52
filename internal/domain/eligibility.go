package domain

import (
	"sort"
	"time"
)

// Eligible is a (user, class session) pair whose class has just ended.
type Eligible struct {
	ChatID    int64     // user id; Telegram private chats share it with the chat
	ClassDate string    // YYYY-MM-DD of ClassEnd in the configured zone
	ClassEnd  time.Time // in the configured zone
	Group     Group
}

// EvaluateEligibility returns the pairs for which now falls inside
// [classEnd, classEnd+grace]. Entries for weekday(now) and for the previous
// weekday count, so a class ending shortly before midnight is still caught
// after it. Inactive users, users of other groups and users whose start date
// is after the class date are skipped. The result is ordered by ClassEnd, then ChatID.
//
// A user with several matching entries gets one pair: the earliest class end.
func EvaluateEligibility(now time.Time, loc *time.Location, grace time.Duration, entries []ScheduleEntry, users []User) []Eligible {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	ends := groupEnds(now, loc, grace, entries)
	if len(ends) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(users))
	var out []Eligible
	for i := range users {
		u := &users[i]
		if !u.Active {
			continue
		}
		end, ok := ends[u.Group]
		if !ok {
			continue
		}
		if startDay(u.StartDate, loc).After(StartOfDay(end)) {
			continue
		}
		if _, dup := seen[u.ChatID]; dup {
			continue
		}
		seen[u.ChatID] = struct{}{}
		out = append(out, Eligible{
			ChatID:    u.ChatID,
			ClassDate: DateKey(end),
			ClassEnd:  end,
			Group:     u.Group,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ClassEnd.Equal(out[j].ClassEnd) {
			return out[i].ClassEnd.Before(out[j].ClassEnd)
		}
		return out[i].ChatID < out[j].ChatID
	})
	return out
}

// InGraceWindow reports whether 0 <= now-classEnd <= grace.
func InGraceWindow(now, classEnd time.Time, grace time.Duration) bool {
	since := now.Sub(classEnd)
	return since >= 0 && since <= grace
}

// GroupsEndingNow returns the groups with an entry whose class end lies
// inside the grace window, in entry order.
func GroupsEndingNow(now time.Time, loc *time.Location, grace time.Duration, entries []ScheduleEntry) []Group {
	if loc == nil {
		loc = time.UTC
	}
	ends := groupEnds(now.In(loc), loc, grace, entries)
	var out []Group
	for _, e := range entries {
		if _, ok := ends[e.Group]; !ok {
			continue
		}
		delete(ends, e.Group)
		out = append(out, e.Group)
	}
	return out
}

// WindowWeekdays are the weekdays whose entries can be inside the grace
// window at now: today's and, for late classes, yesterday's.
func WindowWeekdays(now time.Time) []int {
	wd := WeekdayIndex(now)
	return []int{wd, (wd + 6) % 7}
}

// groupEnds maps each group to its earliest class end inside the window.
func groupEnds(now time.Time, loc *time.Location, grace time.Duration, entries []ScheduleEntry) map[Group]time.Time {
	if grace < 0 {
		grace = 0
	}
	days := []time.Time{now, StartOfDay(now).AddDate(0, 0, -1)}
	ends := make(map[Group]time.Time, len(entries))
	for _, day := range days {
		wd := WeekdayIndex(day)
		for _, e := range entries {
			if e.Weekday != wd {
				continue
			}
			end := e.ClassEnd(day, loc)
			if !InGraceWindow(now, end, grace) {
				continue
			}
			if prev, ok := ends[e.Group]; !ok || end.Before(prev) {
				ends[e.Group] = end
			}
		}
	}
	return ends
}

// startDay keeps the calendar date of t and moves it to midnight in loc.
func startDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
