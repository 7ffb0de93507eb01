package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/statetrail/statetrail/internal/interval"
)

// querier abstracts *sql.DB and *sql.Tx so interval operations can run either
// standalone or inside a caller-scoped transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const recordColumns = "id, subject_id, domain, state, started_at, ended_at"

func scanRecord(row interface{ Scan(...any) error }) (*interval.Record, error) {
	var (
		r       interval.Record
		domain  string
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.SubjectID, &domain, &r.State, &started, &ended); err != nil {
		return nil, err
	}
	r.Domain = interval.Domain(domain)
	r.Start = time.Unix(0, started).UTC()
	if ended.Valid {
		end := time.Unix(0, ended.Int64).UTC()
		r.End = &end
	}
	return &r, nil
}

// AppendOpen opens a new interval for the stream. It fails with
// interval.ErrConflict if an open record already exists; callers must close
// the current interval first.
func (s *Store) AppendOpen(ctx context.Context, subject string, domain interval.Domain, state string, start time.Time) (int64, error) {
	return appendOpen(ctx, s.db, subject, domain, state, start)
}

func appendOpen(ctx context.Context, q querier, subject string, domain interval.Domain, state string, start time.Time) (int64, error) {
	res, err := q.ExecContext(ctx,
		"INSERT INTO intervals (subject_id, domain, state, started_at) VALUES (?, ?, ?, ?)",
		subject, string(domain), state, start.UnixNano(),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return 0, fmt.Errorf("append open interval %s/%s: %w", subject, domain, interval.ErrConflict)
		}
		return 0, fmt.Errorf("insert interval: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("interval insert id: %w", err)
	}
	return id, nil
}

// CloseOpen sets the end on the stream's currently open interval and returns
// its id. It fails with interval.ErrNotFound if no open interval exists and
// interval.ErrInvalidInterval if end <= start.
func (s *Store) CloseOpen(ctx context.Context, subject string, domain interval.Domain, end time.Time) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = closeOpen(ctx, tx, subject, domain, end)
		return err
	})
	return id, err
}

func closeOpen(ctx context.Context, q querier, subject string, domain interval.Domain, end time.Time) (int64, error) {
	cur, err := getOpen(ctx, q, subject, domain)
	if err != nil {
		return 0, err
	}
	if cur == nil {
		return 0, fmt.Errorf("close interval %s/%s: %w", subject, domain, interval.ErrNotFound)
	}
	if !end.After(cur.Start) {
		return 0, fmt.Errorf("close interval %s/%s at %s: %w", subject, domain, end.Format(time.RFC3339Nano), interval.ErrInvalidInterval)
	}

	res, err := q.ExecContext(ctx,
		"UPDATE intervals SET ended_at = ? WHERE id = ? AND ended_at IS NULL",
		end.UnixNano(), cur.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("close interval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("close interval rows: %w", err)
	}
	if n != 1 {
		// Another writer closed it between our read and write.
		return 0, fmt.Errorf("close interval %s/%s: %w", subject, domain, interval.ErrConflict)
	}
	return cur.ID, nil
}

// GetOpen returns the stream's current open interval, or nil if the subject
// has never had this domain recorded or the last interval is closed.
func (s *Store) GetOpen(ctx context.Context, subject string, domain interval.Domain) (*interval.Record, error) {
	return getOpen(ctx, s.db, subject, domain)
}

func getOpen(ctx context.Context, q querier, subject string, domain interval.Domain) (*interval.Record, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM intervals WHERE subject_id = ? AND domain = ? AND ended_at IS NULL",
		subject, string(domain),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query open interval: %w", err)
	}
	return rec, nil
}

// GetAt returns the record whose [start, end) contains the instant, or the
// open record if the instant is at or after its start. Start is inclusive,
// end exclusive.
func (s *Store) GetAt(ctx context.Context, subject string, domain interval.Domain, at time.Time) (*interval.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM intervals WHERE subject_id = ? AND domain = ? AND started_at <= ? AND (ended_at IS NULL OR ended_at > ?) ORDER BY started_at DESC LIMIT 1",
		subject, string(domain), at.UnixNano(), at.UnixNano(),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query interval at instant: %w", err)
	}
	return rec, nil
}

// ListOverlapping returns all records overlapping the window [t0, t1),
// ordered by start ascending. Open records overlap every window at or after
// their start.
func (s *Store) ListOverlapping(ctx context.Context, subject string, domain interval.Domain, t0, t1 time.Time) ([]interval.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM intervals WHERE subject_id = ? AND domain = ? AND started_at < ? AND (ended_at IS NULL OR ended_at > ?) ORDER BY started_at ASC",
		subject, string(domain), t1.UnixNano(), t0.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query overlapping intervals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []interval.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interval row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// CloseAndAppend closes the open record identified by openID and opens a
// successor, in one transaction. The close is conditional on the record still
// being open, so two racing transitions cannot both supersede the same
// interval; the loser gets interval.ErrConflict and must re-read.
func (s *Store) CloseAndAppend(ctx context.Context, openID int64, subject string, domain interval.Domain, newState string, at time.Time) (int64, error) {
	var newID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE intervals SET ended_at = ? WHERE id = ? AND ended_at IS NULL",
			at.UnixNano(), openID,
		)
		if err != nil {
			if isConstraintViolation(err) {
				return fmt.Errorf("close interval %d: %w", openID, interval.ErrInvalidInterval)
			}
			return fmt.Errorf("close interval %d: %w", openID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("close interval rows: %w", err)
		}
		if n != 1 {
			return fmt.Errorf("close interval %d: %w", openID, interval.ErrConflict)
		}

		newID, err = appendOpen(ctx, tx, subject, domain, newState, at)
		return err
	})
	return newID, err
}

// closeAllOpen closes every open interval owned by the subject, across all
// domains, with the given end. Open intervals that would become zero-length
// (started at or after end) are coalesced away instead, since a closed
// interval must have end > start.
func closeAllOpen(ctx context.Context, q querier, subject string, end time.Time) (int, error) {
	res, err := q.ExecContext(ctx,
		"UPDATE intervals SET ended_at = ? WHERE subject_id = ? AND ended_at IS NULL AND started_at < ?",
		end.UnixNano(), subject, end.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("close open intervals for %s: %w", subject, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("closed interval rows: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		"DELETE FROM intervals WHERE subject_id = ? AND ended_at IS NULL AND started_at >= ?",
		subject, end.UnixNano(),
	); err != nil {
		return 0, fmt.Errorf("coalesce zero-length intervals for %s: %w", subject, err)
	}
	return int(n), nil
}

// Tx exposes interval operations scoped to a single transaction. It exists so
// multi-stream writes that must land atomically (session close plus its flag
// force-close) share one commit.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a transaction, committing on success and rolling back
// on error.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.withTx(ctx, func(t *sql.Tx) error {
		return fn(&Tx{tx: t})
	})
}

// GetOpen is the transaction-scoped variant of Store.GetOpen.
func (t *Tx) GetOpen(ctx context.Context, subject string, domain interval.Domain) (*interval.Record, error) {
	return getOpen(ctx, t.tx, subject, domain)
}

// AppendOpen is the transaction-scoped variant of Store.AppendOpen.
func (t *Tx) AppendOpen(ctx context.Context, subject string, domain interval.Domain, state string, start time.Time) (int64, error) {
	return appendOpen(ctx, t.tx, subject, domain, state, start)
}

// CloseOpen is the transaction-scoped variant of Store.CloseOpen.
func (t *Tx) CloseOpen(ctx context.Context, subject string, domain interval.Domain, end time.Time) (int64, error) {
	return closeOpen(ctx, t.tx, subject, domain, end)
}

// CloseAllOpen closes every open interval owned by the subject with the given
// end, returning how many were closed.
func (t *Tx) CloseAllOpen(ctx context.Context, subject string, end time.Time) (int, error) {
	return closeAllOpen(ctx, t.tx, subject, end)
}
