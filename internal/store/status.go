package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CustomStatus is a user-set status message. Unlike interval streams these
// are point events: each row records when the status was set, and the latest
// row is the current one.
type CustomStatus struct {
	ID     int64
	UserID string
	Text   *string
	Emoji  *string
	SetAt  time.Time
}

// SetCustomStatus appends a custom status event.
func (s *Store) SetCustomStatus(ctx context.Context, userID string, text, emoji *string, at time.Time) error {
	var txt, emo sql.NullString
	if text != nil {
		txt = sql.NullString{String: *text, Valid: true}
	}
	if emoji != nil {
		emo = sql.NullString{String: *emoji, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO custom_statuses (user_id, status_text, emoji, set_at) VALUES (?, ?, ?, ?)",
		userID, txt, emo, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("set custom status for %s: %w", userID, err)
	}
	return nil
}

// LatestCustomStatus returns the user's most recently set custom status, or
// nil if none was ever set.
func (s *Store) LatestCustomStatus(ctx context.Context, userID string) (*CustomStatus, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, status_text, emoji, set_at FROM custom_statuses WHERE user_id = ? ORDER BY set_at DESC, id DESC LIMIT 1",
		userID,
	)
	st, err := scanCustomStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest custom status: %w", err)
	}
	return st, nil
}

// ListCustomStatuses returns the user's custom status history, newest first.
func (s *Store) ListCustomStatuses(ctx context.Context, userID string, limit int) ([]CustomStatus, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, status_text, emoji, set_at FROM custom_statuses WHERE user_id = ? ORDER BY set_at DESC, id DESC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query custom statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CustomStatus
	for rows.Next() {
		st, err := scanCustomStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan custom status row: %w", err)
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func scanCustomStatus(row interface{ Scan(...any) error }) (*CustomStatus, error) {
	var (
		st       CustomStatus
		txt, emo sql.NullString
		setAt    int64
	)
	if err := row.Scan(&st.ID, &st.UserID, &txt, &emo, &setAt); err != nil {
		return nil, err
	}
	if txt.Valid {
		st.Text = &txt.String
	}
	if emo.Valid {
		st.Emoji = &emo.String
	}
	st.SetAt = time.Unix(0, setAt).UTC()
	return &st, nil
}
