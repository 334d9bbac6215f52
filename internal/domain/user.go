package domain

import "time"

// User is a registered student bound to one class group.
type User struct {
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
	Group     Group
	StartDate time.Time // date only, midnight in the configured zone
	Active    bool      // false suppresses feedback prompts
	CreatedAt time.Time // UTC
}

// DisplayName returns "First Last (@username)" with empty parts omitted.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if u.Username != "" {
		if name != "" {
			name += " "
		}
		name += "(@" + u.Username + ")"
	}
	return name
}
