package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/statetrail/statetrail/internal/discord"
	"github.com/statetrail/statetrail/internal/interval"
)

// SweepInvariants scans the interval table for violations of the model's
// invariants: duplicate open records per stream, closed records without
// positive duration, and flag intervals that outlive their owning session.
// It returns human-readable findings, or nil when the store is consistent.
//
// The partial unique index and the duration CHECK make the first two
// impossible to create through this package; the sweep exists to detect
// damage from external writers or restored backups.
func (s *Store) SweepInvariants(ctx context.Context) ([]string, error) {
	var findings []string

	rows, err := s.db.QueryContext(ctx,
		"SELECT subject_id, domain, COUNT(*) FROM intervals WHERE ended_at IS NULL GROUP BY subject_id, domain HAVING COUNT(*) > 1",
	)
	if err != nil {
		return nil, fmt.Errorf("sweep duplicate open intervals: %w", err)
	}
	for rows.Next() {
		var subject, domain string
		var n int
		if err := rows.Scan(&subject, &domain, &n); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan duplicate open row: %w", err)
		}
		findings = append(findings, fmt.Sprintf("stream %s/%s has %d open intervals", subject, domain, n))
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	var degenerate int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM intervals WHERE ended_at IS NOT NULL AND ended_at <= started_at",
	).Scan(&degenerate); err != nil {
		return nil, fmt.Errorf("sweep degenerate intervals: %w", err)
	}
	if degenerate > 0 {
		findings = append(findings, fmt.Sprintf("%d closed intervals without positive duration", degenerate))
	}

	flagFindings, err := s.sweepFlagLiveness(ctx)
	if err != nil {
		return nil, err
	}
	findings = append(findings, flagFindings...)

	return findings, nil
}

// sweepFlagLiveness checks every interval owned by a session subject: the
// domain must be a flag domain, the interval must start inside the owning
// session, and no interval may remain open or extend past the session's end.
func (s *Store) sweepFlagLiveness(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM intervals WHERE subject_id LIKE 'session:%' ORDER BY subject_id, started_at",
	)
	if err != nil {
		return nil, fmt.Errorf("sweep flag streams: %w", err)
	}
	var flagRecs []interval.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan flag interval: %w", err)
		}
		flagRecs = append(flagRecs, *rec)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	var findings []string
	sessions := make(map[string]*interval.Record)
	orphaned := make(map[string]bool)
	for _, rec := range flagRecs {
		if !interval.IsFlagDomain(rec.Domain) {
			findings = append(findings, fmt.Sprintf("stream %s/%s is not a flag stream", rec.SubjectID, rec.Domain))
			continue
		}

		sessionID := strings.TrimPrefix(rec.SubjectID, "session:")
		session, seen := sessions[sessionID]
		if !seen {
			session, err = s.findSessionRecord(ctx, sessionID)
			if err != nil {
				return nil, err
			}
			sessions[sessionID] = session
		}
		if session == nil {
			if !orphaned[rec.SubjectID] {
				orphaned[rec.SubjectID] = true
				findings = append(findings, fmt.Sprintf("flag stream %s has no owning session record", rec.SubjectID))
			}
			continue
		}

		if !session.Contains(rec.Start) {
			findings = append(findings, fmt.Sprintf("flag interval on %s/%s starts outside its session", rec.SubjectID, rec.Domain))
			continue
		}
		if session.End != nil && (rec.End == nil || rec.End.After(*session.End)) {
			findings = append(findings, fmt.Sprintf("flag stream %s has intervals outliving session end", rec.SubjectID))
		}
	}
	return findings, nil
}

// findSessionRecord locates the voice_session interval whose state carries
// the given session id.
func (s *Store) findSessionRecord(ctx context.Context, sessionID string) (*interval.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM intervals WHERE domain = ? AND state LIKE ?",
		string(interval.DomainVoiceSession), "%"+sessionID+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("query session record: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session record: %w", err)
		}
		st, err := discord.DecodeVoiceSessionState(rec.State)
		if err != nil {
			continue
		}
		if st.SessionID == sessionID {
			return rec, nil
		}
	}
	return nil, rows.Err()
}
