package store

import (
	"context"

	"github.com/classfeedback/feedback-bot/internal/domain"
)

// SeedSchedule inserts entries only when the schedule table is empty and
// returns how many rows were written.
func (s *DB) SeedSchedule(ctx context.Context, entries []domain.ScheduleEntry) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, wrap("seed schedule", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM schedule_entries`); err != nil {
		return 0, wrap("seed schedule", err)
	}
	if count > 0 {
		return 0, nil
	}

	inserted := 0
	for _, e := range entries {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO schedule_entries (group_type, weekday, end_minutes)
			VALUES (?, ?, ?)
			ON CONFLICT (group_type, weekday) DO NOTHING`),
			string(e.Group), e.Weekday, e.EndMinutes)
		if err != nil {
			return 0, wrap("seed schedule", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, wrap("seed schedule", err)
	}
	return inserted, nil
}

// ListSchedule returns entries for one weekday (0=Mon..6=Sun).
func (s *DB) ListSchedule(ctx context.Context, weekday int) ([]domain.ScheduleEntry, error) {
	var rows []scheduleRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT group_type, weekday, end_minutes
		FROM schedule_entries
		WHERE weekday = ?
		ORDER BY end_minutes ASC, group_type ASC`), weekday)
	if err != nil {
		return nil, wrap("list schedule", err)
	}
	return toEntries(rows), nil
}

// ListAllSchedule returns the whole weekly schedule.
func (s *DB) ListAllSchedule(ctx context.Context) ([]domain.ScheduleEntry, error) {
	var rows []scheduleRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT group_type, weekday, end_minutes
		FROM schedule_entries
		ORDER BY weekday ASC, end_minutes ASC, group_type ASC`)
	if err != nil {
		return nil, wrap("list schedule", err)
	}
	return toEntries(rows), nil
}

func toEntries(rows []scheduleRow) []domain.ScheduleEntry {
	out := make([]domain.ScheduleEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
