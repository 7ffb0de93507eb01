package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is a tracked subject. Current names live in the name interval stream;
// this row only anchors identity and first-seen.
type User struct {
	UserID    string
	FirstSeen time.Time
}

// EnsureUser registers a user if unknown. The stored first_seen is never
// moved forward by later sightings.
func (s *Store) EnsureUser(ctx context.Context, userID string, seenAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (user_id, first_seen) VALUES (?, ?) ON CONFLICT(user_id) DO UPDATE SET first_seen = MIN(first_seen, excluded.first_seen)",
		userID, seenAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("ensure user %s: %w", userID, err)
	}
	return nil
}

// GetUser retrieves a user by id, or nil if unknown.
func (s *Store) GetUser(ctx context.Context, userID string) (*User, error) {
	var (
		u     User
		first int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, first_seen FROM users WHERE user_id = ?", userID,
	).Scan(&u.UserID, &first)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.FirstSeen = time.Unix(0, first).UTC()
	return &u, nil
}
