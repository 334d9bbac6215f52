package domain

import (
	"errors"
	"strings"
)

// Group identifies a class cohort sharing one recurring schedule.
type Group string

const (
	GroupWeekday Group = "weekday"
	GroupWeekend Group = "weekend"
)

var ErrUnknownGroup = errors.New("unknown group")

// Groups lists known groups in keyboard order.
func Groups() []Group {
	return []Group{GroupWeekday, GroupWeekend}
}

// Valid reports whether g is one of the known groups.
func (g Group) Valid() bool {
	return g == GroupWeekday || g == GroupWeekend
}

// Title is the human label shown to students.
func (g Group) Title() string {
	switch g {
	case GroupWeekday:
		return "Будни (пн-пт)"
	case GroupWeekend:
		return "Выходные (сб)"
	default:
		return string(g)
	}
}

// ChoiceLabel is the registration keyboard label, e.g. "Будни (пн-пт) (weekday)".
func (g Group) ChoiceLabel() string {
	return g.Title() + " (" + string(g) + ")"
}

// ParseGroupChoice maps a keyboard label (or a bare group id) back to a Group.
func ParseGroupChoice(text string) (Group, error) {
	text = strings.TrimSpace(text)
	for _, g := range Groups() {
		if text == g.ChoiceLabel() || strings.EqualFold(text, string(g)) {
			return g, nil
		}
	}
	return "", ErrUnknownGroup
}
