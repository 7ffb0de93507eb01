// Package query answers read-side questions over interval streams: current
// state, point-in-time state, history and time-in-state durations.
package query

import (
	"context"
	"time"

	"github.com/statetrail/statetrail/internal/discord"
	"github.com/statetrail/statetrail/internal/interval"
	"github.com/statetrail/statetrail/internal/store"
)

// Predicate selects which canonical states of a stream count toward a
// duration sum.
type Predicate func(state string) bool

// Service wraps a store with read-side query helpers.
type Service struct {
	store *store.Store
}

// NewService creates a query service over the given store.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// Current returns the stream's open record, or nil if the subject has no
// current state in that domain.
func (s *Service) Current(ctx context.Context, subject string, domain interval.Domain) (*interval.Record, error) {
	return s.store.GetOpen(ctx, subject, domain)
}

// At returns the record active at the instant, or nil if the stream had no
// state then. The interval start is inclusive, the end exclusive.
func (s *Service) At(ctx context.Context, subject string, domain interval.Domain, at time.Time) (*interval.Record, error) {
	return s.store.GetAt(ctx, subject, domain, at)
}

// History returns all records overlapping [t0, t1), ordered by start.
func (s *Service) History(ctx context.Context, subject string, domain interval.Domain, t0, t1 time.Time) ([]interval.Record, error) {
	return s.store.ListOverlapping(ctx, subject, domain, t0, t1)
}

// DurationIn sums the stream's time within [t0, t1) spent in states matching
// the predicate. Open records count up to t1; the stored end stays null.
// Results are never negative and intervals outside the window contribute
// zero.
func (s *Service) DurationIn(ctx context.Context, subject string, domain interval.Domain, t0, t1 time.Time, pred Predicate) (time.Duration, error) {
	records, err := s.store.ListOverlapping(ctx, subject, domain, t0, t1)
	if err != nil {
		return 0, err
	}
	var total time.Duration
	for _, rec := range records {
		if pred != nil && !pred(rec.State) {
			continue
		}
		total += rec.DurationWithin(t0, t1)
	}
	return total, nil
}

// PresenceSummary returns time spent per presence status within [t0, t1).
func (s *Service) PresenceSummary(ctx context.Context, userID string, t0, t1 time.Time) (map[discord.Status]time.Duration, error) {
	records, err := s.store.ListOverlapping(ctx, userID, interval.DomainPresence, t0, t1)
	if err != nil {
		return nil, err
	}
	summary := make(map[discord.Status]time.Duration)
	for _, rec := range records {
		summary[discord.Status(rec.State)] += rec.DurationWithin(t0, t1)
	}
	return summary, nil
}

// VoiceTime returns the user's total voice session time within [t0, t1).
func (s *Service) VoiceTime(ctx context.Context, userID string, t0, t1 time.Time) (time.Duration, error) {
	return s.DurationIn(ctx, userID, interval.DomainVoiceSession, t0, t1, nil)
}

// CurrentName returns the user's current name tuple, or nil if never named.
func (s *Service) CurrentName(ctx context.Context, userID string) (*discord.NameState, error) {
	rec, err := s.store.GetOpen(ctx, userID, interval.DomainName)
	if err != nil || rec == nil {
		return nil, err
	}
	name, err := discord.DecodeNameState(rec.State)
	if err != nil {
		return nil, err
	}
	return &name, nil
}
