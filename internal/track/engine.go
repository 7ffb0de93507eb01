// Package track applies observed state changes to interval streams. The
// Engine holds the generic transition algorithm; the per-domain trackers
// (Names, Presence, Activities, Voice) define subject keys, canonical state
// encodings and lifecycle rules on top of it.
package track

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/statetrail/statetrail/internal/interval"
	"github.com/statetrail/statetrail/internal/log"
	"github.com/statetrail/statetrail/internal/metrics"
	"github.com/statetrail/statetrail/internal/store"
)

// Engine turns observations into interval transitions while upholding the
// single-open-interval invariant per stream.
type Engine struct {
	store *store.Store
	locks *keyedMutex
	log   zerolog.Logger
}

// NewEngine creates a transition engine backed by the given store.
func NewEngine(st *store.Store) *Engine {
	return &Engine{
		store: st,
		locks: newKeyedMutex(),
		log:   log.WithComponent("track"),
	}
}

// Observe applies a newly observed state to the stream:
//
//   - no open interval: open one with start=at (Opened)
//   - open interval with equal canonical state: no write (Unchanged)
//   - open interval with different state: close it at `at` and open the
//     successor, atomically (Transitioned)
//
// An `at` that is not strictly after the open interval's start is rejected
// with interval.ErrOutOfOrder and leaves stored state untouched: history is
// append-only and monotonic, and the store cannot hold two records for the
// same instant. Observations on the same stream serialize; different streams
// proceed independently.
func (e *Engine) Observe(ctx context.Context, subject string, domain interval.Domain, state string, at time.Time) (interval.Outcome, error) {
	unlock := e.locks.lock(subject, domain)
	defer unlock()
	return e.observeLocked(ctx, subject, domain, state, at)
}

func (e *Engine) observeLocked(ctx context.Context, subject string, domain interval.Domain, state string, at time.Time) (interval.Outcome, error) {
	cur, err := e.store.GetOpen(ctx, subject, domain)
	if err != nil {
		metrics.IncTransitionError(string(domain), errReason(err))
		return interval.Outcome{}, err
	}

	if cur == nil {
		id, err := e.store.AppendOpen(ctx, subject, domain, state, at)
		if err != nil {
			metrics.IncTransitionError(string(domain), errReason(err))
			return interval.Outcome{}, err
		}
		metrics.IncTransition(string(domain), string(interval.Opened))
		e.log.Debug().
			Str(log.FieldSubjectID, subject).
			Str(log.FieldDomain, string(domain)).
			Str(log.FieldNewState, state).
			Str(log.FieldOutcome, string(interval.Opened)).
			Msg("interval opened")
		return interval.Outcome{Kind: interval.Opened, State: state, RecordID: id}, nil
	}

	// Idempotent re-observation must not fragment history.
	if cur.State == state {
		metrics.IncTransition(string(domain), string(interval.Unchanged))
		return interval.Outcome{Kind: interval.Unchanged, State: state, RecordID: cur.ID}, nil
	}

	if !at.After(cur.Start) {
		metrics.IncTransitionError(string(domain), "out_of_order")
		return interval.Outcome{}, fmt.Errorf("observe %s/%s at %s, current interval started %s: %w",
			subject, domain, at.Format(time.RFC3339Nano), cur.Start.Format(time.RFC3339Nano), interval.ErrOutOfOrder)
	}

	newID, err := e.store.CloseAndAppend(ctx, cur.ID, subject, domain, state, at)
	if err != nil {
		metrics.IncTransitionError(string(domain), errReason(err))
		return interval.Outcome{}, err
	}
	metrics.IncTransition(string(domain), string(interval.Transitioned))
	e.log.Debug().
		Str(log.FieldSubjectID, subject).
		Str(log.FieldDomain, string(domain)).
		Str(log.FieldOldState, cur.State).
		Str(log.FieldNewState, state).
		Str(log.FieldOutcome, string(interval.Transitioned)).
		Msg("interval transitioned")
	return interval.Outcome{Kind: interval.Transitioned, Previous: cur.State, State: state, RecordID: newID}, nil
}

// End closes the stream's open interval without opening a successor, for
// states that simply stop (an activity ending) rather than transition.
// Returns the closed record's id.
func (e *Engine) End(ctx context.Context, subject string, domain interval.Domain, at time.Time) (int64, error) {
	unlock := e.locks.lock(subject, domain)
	defer unlock()

	id, err := e.store.CloseOpen(ctx, subject, domain, at)
	if err != nil {
		metrics.IncTransitionError(string(domain), errReason(err))
		return 0, err
	}
	e.log.Debug().
		Str(log.FieldSubjectID, subject).
		Str(log.FieldDomain, string(domain)).
		Str(log.FieldEvent, "ended").
		Msg("interval closed")
	return id, nil
}

func errReason(err error) string {
	switch {
	case errors.Is(err, interval.ErrConflict):
		return "conflict"
	case errors.Is(err, interval.ErrOutOfOrder):
		return "out_of_order"
	case errors.Is(err, interval.ErrInvalidInterval):
		return "invalid_interval"
	case errors.Is(err, interval.ErrNotFound):
		return "not_found"
	default:
		return "storage"
	}
}
