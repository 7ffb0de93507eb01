// Package store provides SQLite persistence for interval streams and the
// supplementary activity tables (users, messages, custom statuses).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	sqlite "modernc.org/sqlite"

	"github.com/statetrail/statetrail/internal/log"
)

// Store provides SQLite persistence for statetrail data.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open initializes a new SQLite store and runs migrations.
// busy_timeout avoids "database locked" errors; WAL suits the
// read-heavy query workload.
func Open(dbPath string, busyTimeout time.Duration) (*Store, error) {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		dbPath, busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, log: log.WithComponent("store")}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs database schema migrations.
//
// The partial unique index on (subject_id, domain) WHERE ended_at IS NULL is
// the storage-level guarantee that a stream has at most one open interval,
// even across processes.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		first_seen INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS intervals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		state TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		CHECK (ended_at IS NULL OR ended_at > started_at)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_intervals_open
		ON intervals(subject_id, domain) WHERE ended_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_intervals_stream_start
		ON intervals(subject_id, domain, started_at);

	CREATE TABLE IF NOT EXISTS messages (
		message_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		message_type TEXT NOT NULL DEFAULT 'default',
		has_attachments INTEGER NOT NULL DEFAULT 0,
		has_embeds INTEGER NOT NULL DEFAULT 0,
		character_count INTEGER,
		sent_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_user_sent ON messages(user_id, sent_at);
	CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, sent_at);

	CREATE TABLE IF NOT EXISTS custom_statuses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		status_text TEXT,
		emoji TEXT,
		set_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_custom_statuses_user_set ON custom_statuses(user_id, set_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// VerifyIntegrity checks the database file for structural corruption.
// Mode can be "quick" (PRAGMA quick_check) or "full" (PRAGMA integrity_check).
// It returns diagnostic rows if corruption is found, or nil if healthy.
func VerifyIntegrity(path string, mode string) ([]string, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(2000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database for verification: %w", err)
	}
	defer func() { _ = db.Close() }()

	pragma := "PRAGMA quick_check;"
	if mode == "full" {
		pragma = "PRAGMA integrity_check;"
	}

	rows, err := db.Query(pragma)
	if err != nil {
		return nil, fmt.Errorf("integrity pragma failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []string
	for rows.Next() {
		var res string
		if err := rows.Scan(&res); err != nil {
			return nil, fmt.Errorf("scan integrity result row: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Success is exactly a single row with "ok".
	if len(results) == 1 && strings.ToLower(results[0]) == "ok" {
		return nil, nil
	}
	if len(results) == 0 {
		return []string{"no results returned from integrity check"}, nil
	}
	return results, nil
}

// isConstraintViolation reports whether err is a SQLite constraint failure
// (primary result code SQLITE_CONSTRAINT).
func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == 19
}

// withTx runs fn inside a transaction with commit/rollback handling.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
