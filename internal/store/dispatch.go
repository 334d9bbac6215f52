package store

import (
	"context"
)

// ClaimDispatch creates the record for (rec.ChatID, rec.ClassDate) unless one
// already exists. It reports true only for the caller whose insert won; the
// primary key makes this race-free across goroutines and processes.
func (s *DB) ClaimDispatch(ctx context.Context, rec DispatchRecord) (bool, error) {
	status := rec.Status
	if status == "" {
		status = DispatchPending
	}
	now := s.nowUnix()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO dispatches (chat_id, class_date, class_end_at, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id, class_date) DO NOTHING`),
		rec.ChatID, rec.ClassDate, rec.ClassEnd.UTC().Unix(), string(status), rec.Error, now, now)
	if err != nil {
		return false, wrap("claim dispatch", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("claim dispatch", err)
	}
	return n == 1, nil
}

// MarkDispatch records the delivery outcome of a claimed dispatch.
func (s *DB) MarkDispatch(ctx context.Context, chatID int64, classDate string, status DispatchStatus, errText string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE dispatches
		SET status = ?, error = ?, updated_at = ?
		WHERE chat_id = ? AND class_date = ?`),
		string(status), errText, s.nowUnix(), chatID, classDate)
	if err != nil {
		return wrap("mark dispatch", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrap("mark dispatch", ErrNotFound)
	}
	return nil
}

// GetDispatch returns the record for (chatID, classDate) or ErrNotFound.
func (s *DB) GetDispatch(ctx context.Context, chatID int64, classDate string) (*DispatchRecord, error) {
	var row dispatchRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT chat_id, class_date, class_end_at, status, error, created_at, updated_at
		FROM dispatches
		WHERE chat_id = ? AND class_date = ?`), chatID, classDate)
	if err != nil {
		return nil, wrap("get dispatch", err)
	}
	rec := row.toRecord()
	return &rec, nil
}

// PruneDispatches deletes records whose class date is before the given
// YYYY-MM-DD date and returns the number removed.
func (s *DB) PruneDispatches(ctx context.Context, before string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM dispatches WHERE class_date < ?`), before)
	if err != nil {
		return 0, wrap("prune dispatches", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("prune dispatches", err)
	}
	return n, nil
}
