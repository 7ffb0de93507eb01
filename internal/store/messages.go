package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Message captures message metadata for activity analysis. Content is never
// stored.
type Message struct {
	MessageID      string
	UserID         string
	ChannelID      string
	Type           string
	HasAttachments bool
	HasEmbeds      bool
	CharacterCount *int64
	SentAt         time.Time
}

// RecordMessage stores message metadata. Re-delivery of the same message id
// is a no-op, so ingestion retries cannot double-count.
func (s *Store) RecordMessage(ctx context.Context, m Message) error {
	if m.Type == "" {
		m.Type = "default"
	}
	var chars sql.NullInt64
	if m.CharacterCount != nil {
		chars = sql.NullInt64{Int64: *m.CharacterCount, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO messages (message_id, user_id, channel_id, message_type, has_attachments, has_embeds, character_count, sent_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		m.MessageID, m.UserID, m.ChannelID, m.Type, m.HasAttachments, m.HasEmbeds, chars, m.SentAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record message %s: %w", m.MessageID, err)
	}
	return nil
}

// ListMessages returns the user's messages sent within [t0, t1), ordered by
// send time.
func (s *Store) ListMessages(ctx context.Context, userID string, t0, t1 time.Time) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT message_id, user_id, channel_id, message_type, has_attachments, has_embeds, character_count, sent_at FROM messages WHERE user_id = ? AND sent_at >= ? AND sent_at < ? ORDER BY sent_at ASC",
		userID, t0.UnixNano(), t1.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Message
	for rows.Next() {
		var (
			m      Message
			chars  sql.NullInt64
			sentAt int64
		)
		if err := rows.Scan(&m.MessageID, &m.UserID, &m.ChannelID, &m.Type, &m.HasAttachments, &m.HasEmbeds, &chars, &sentAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if chars.Valid {
			n := chars.Int64
			m.CharacterCount = &n
		}
		m.SentAt = time.Unix(0, sentAt).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMessages returns how many messages the user sent within [t0, t1).
func (s *Store) CountMessages(ctx context.Context, userID string, t0, t1 time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE user_id = ? AND sent_at >= ? AND sent_at < ?",
		userID, t0.UnixNano(), t1.UnixNano(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
