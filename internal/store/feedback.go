package store

import (
	"context"

	"github.com/google/uuid"
)

// SaveFeedback stores a feedback message and returns its id.
func (s *DB) SaveFeedback(ctx context.Context, chatID int64, message string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO feedback (id, chat_id, message, created_at) VALUES (?, ?, ?, ?)`),
		id, chatID, message, s.nowUnix())
	if err != nil {
		return "", wrap("save feedback", err)
	}
	return id, nil
}

// CountFeedback returns how many messages a user has sent.
func (s *DB) CountFeedback(ctx context.Context, chatID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		s.db.Rebind(`SELECT COUNT(*) FROM feedback WHERE chat_id = ?`), chatID)
	if err != nil {
		return 0, wrap("count feedback", err)
	}
	return n, nil
}
