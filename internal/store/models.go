package store

import (
	"time"

	"github.com/classfeedback/feedback-bot/internal/domain"
)

// DispatchStatus tracks what happened to a claimed feedback prompt.
type DispatchStatus string

const (
	DispatchPending DispatchStatus = "pending"
	DispatchSent    DispatchStatus = "sent"
	DispatchFailed  DispatchStatus = "failed"
)

// DispatchRecord marks that a feedback prompt for (ChatID, ClassDate) has
// been scheduled. The pair is unique at the storage layer.
type DispatchRecord struct {
	ChatID    int64
	ClassDate string // YYYY-MM-DD
	ClassEnd  time.Time
	Status    DispatchStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const dateLayout = "2006-01-02"

type userRow struct {
	ChatID    int64  `db:"chat_id"`
	Username  string `db:"username"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	GroupType string `db:"group_type"`
	StartDate string `db:"start_date"`
	IsActive  int    `db:"is_active"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r userRow) toDomain(loc *time.Location) (domain.User, error) {
	start, err := time.ParseInLocation(dateLayout, r.StartDate, loc)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ChatID:    r.ChatID,
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Group:     domain.Group(r.GroupType),
		StartDate: start,
		Active:    r.IsActive != 0,
		CreatedAt: time.Unix(r.CreatedAt, 0).UTC(),
	}, nil
}

type scheduleRow struct {
	GroupType  string `db:"group_type"`
	Weekday    int    `db:"weekday"`
	EndMinutes int    `db:"end_minutes"`
}

func (r scheduleRow) toDomain() domain.ScheduleEntry {
	return domain.ScheduleEntry{Group: domain.Group(r.GroupType), Weekday: r.Weekday, EndMinutes: r.EndMinutes}
}

type dispatchRow struct {
	ChatID     int64  `db:"chat_id"`
	ClassDate  string `db:"class_date"`
	ClassEndAt int64  `db:"class_end_at"`
	Status     string `db:"status"`
	Error      string `db:"error"`
	CreatedAt  int64  `db:"created_at"`
	UpdatedAt  int64  `db:"updated_at"`
}

func (r dispatchRow) toRecord() DispatchRecord {
	return DispatchRecord{
		ChatID:    r.ChatID,
		ClassDate: r.ClassDate,
		ClassEnd:  time.Unix(r.ClassEndAt, 0).UTC(),
		Status:    DispatchStatus(r.Status),
		Error:     r.Error,
		CreatedAt: time.Unix(r.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(r.UpdatedAt, 0).UTC(),
	}
}

// boolToInt converts a boolean to 1/0 for portable integer flags.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
