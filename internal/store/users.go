package store

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/classfeedback/feedback-bot/internal/domain"
)

const userColumns = `chat_id, username, first_name, last_name, group_type,
	start_date, is_active, created_at, updated_at`

// UpsertUser inserts or updates a user.
// If the user (chat_id) exists, mutable fields are updated; created_at is kept.
func (s *DB) UpsertUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	if !u.Group.Valid() {
		return domain.ErrUnknownGroup
	}

	now := s.nowUnix()
	created := u.CreatedAt.UTC().Unix()
	if u.CreatedAt.IsZero() {
		created = now
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			username   = excluded.username,
			first_name = excluded.first_name,
			last_name  = excluded.last_name,
			group_type = excluded.group_type,
			start_date = excluded.start_date,
			is_active  = excluded.is_active,
			updated_at = excluded.updated_at`),
		u.ChatID, u.Username, u.FirstName, u.LastName, string(u.Group),
		u.StartDate.Format(dateLayout), boolToInt(u.Active), created, now,
	)
	return wrap("upsert user", err)
}

// GetUser returns a user by chat id or ErrNotFound.
func (s *DB) GetUser(ctx context.Context, chatID int64) (*domain.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE chat_id = ?`), chatID)
	if err != nil {
		return nil, wrap("get user", err)
	}
	u, err := row.toDomain(s.loc)
	if err != nil {
		return nil, wrap("decode user", err)
	}
	return &u, nil
}

// SetActive toggles the active flag. Users are never deleted.
func (s *DB) SetActive(ctx context.Context, chatID int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE users SET is_active = ?, updated_at = ? WHERE chat_id = ?`),
		boolToInt(active), s.nowUnix(), chatID)
	if err != nil {
		return wrap("set active", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("set active", err)
	}
	if n == 0 {
		return wrap("set active", ErrNotFound)
	}
	return nil
}

// ListEligibleUsers returns active users of the given groups whose start
// date is on or before the date of onOrBefore, ordered by chat id.
func (s *DB) ListEligibleUsers(ctx context.Context, groups []domain.Group, onOrBefore time.Time) ([]domain.User, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = string(g)
	}

	query, args, err := sqlx.In(`
		SELECT `+userColumns+`
		FROM users
		WHERE is_active = 1
		  AND group_type IN (?)
		  AND start_date <= ?
		ORDER BY chat_id ASC`,
		names, onOrBefore.In(s.loc).Format(dateLayout))
	if err != nil {
		return nil, wrap("list eligible users", err)
	}

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, wrap("list eligible users", err)
	}

	res := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		u, err := r.toDomain(s.loc)
		if err != nil {
			return nil, wrap("decode user", err)
		}
		res = append(res, u)
	}
	return res, nil
}
