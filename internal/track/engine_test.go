package track

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/statetrail/statetrail/internal/interval"
)

func TestObserve_OpenUnchangedTransition(t *testing.T) {
	s := newTestStore(t)
	eng := NewEngine(s)
	ctx := context.Background()

	out, err := eng.Observe(ctx, "u1", interval.DomainPresence, "online", ts(0))
	require.NoError(t, err)
	assert.Equal(t, interval.Opened, out.Kind)

	// Idempotent re-observation: one interval, original start, still open.
	out, err = eng.Observe(ctx, "u1", interval.DomainPresence, "online", ts(5))
	require.NoError(t, err)
	assert.Equal(t, interval.Unchanged, out.Kind)

	open, err := s.GetOpen(ctx, "u1", interval.DomainPresence)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.True(t, open.Start.Equal(ts(0)), "re-observation must not fragment history")

	out, err = eng.Observe(ctx, "u1", interval.DomainPresence, "idle", ts(10))
	require.NoError(t, err)
	assert.Equal(t, interval.Transitioned, out.Kind)
	assert.Equal(t, "online", out.Previous)
	assert.Equal(t, "idle", out.State)

	recs, err := s.ListOverlapping(ctx, "u1", interval.DomainPresence, ts(-1), ts(100))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.NotNil(t, recs[0].End)
	assert.True(t, recs[0].End.Equal(ts(10)), "close always lands exactly where the successor opens")
	assert.Nil(t, recs[1].End)
}

func TestObserve_OutOfOrderRejected(t *testing.T) {
	s := newTestStore(t)
	eng := NewEngine(s)
	ctx := context.Background()

	_, err := eng.Observe(ctx, "u1", interval.DomainPresence, "online", ts(10))
	require.NoError(t, err)

	// Backdated change.
	_, err = eng.Observe(ctx, "u1", interval.DomainPresence, "idle", ts(5))
	require.ErrorIs(t, err, interval.ErrOutOfOrder)

	// Equal instant with a different state: the store cannot hold two records
	// for the same instant.
	_, err = eng.Observe(ctx, "u1", interval.DomainPresence, "idle", ts(10))
	require.ErrorIs(t, err, interval.ErrOutOfOrder)

	// Rejection must leave stored state untouched.
	open, err := s.GetOpen(ctx, "u1", interval.DomainPresence)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "online", open.State)
	assert.True(t, open.Start.Equal(ts(10)))

	// Equal instant with the same state is an idempotent re-ping, not an error.
	out, err := eng.Observe(ctx, "u1", interval.DomainPresence, "online", ts(10))
	require.NoError(t, err)
	assert.Equal(t, interval.Unchanged, out.Kind)
}

func TestEnd(t *testing.T) {
	s := newTestStore(t)
	eng := NewEngine(s)
	ctx := context.Background()

	_, err := eng.End(ctx, "u1", interval.DomainPresence, ts(1))
	require.ErrorIs(t, err, interval.ErrNotFound)

	_, err = eng.Observe(ctx, "u1", interval.DomainPresence, "online", ts(0))
	require.NoError(t, err)

	_, err = eng.End(ctx, "u1", interval.DomainPresence, ts(5))
	require.NoError(t, err)

	open, err := s.GetOpen(ctx, "u1", interval.DomainPresence)
	require.NoError(t, err)
	assert.Nil(t, open)
}

// TestObserve_ConcurrentSameStream drives many interleaved observations at
// one stream and checks the single-open-interval invariant afterwards. Racing
// writers may legally lose with ErrOutOfOrder; nothing else is acceptable.
func TestObserve_ConcurrentSameStream(t *testing.T) {
	s := newTestStore(t)
	eng := NewEngine(s)
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		state := fmt.Sprintf("state-%d", i%5)
		at := ts(i)
		g.Go(func() error {
			_, err := eng.Observe(ctx, "u1", interval.DomainPresence, state, at)
			if err != nil && !errors.Is(err, interval.ErrOutOfOrder) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	recs, err := s.ListOverlapping(ctx, "u1", interval.DomainPresence, ts(-1), ts(100))
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	openCount := 0
	for i, rec := range recs {
		if rec.End == nil {
			openCount++
			continue
		}
		require.True(t, rec.End.After(rec.Start), "closed interval %d must have positive duration", i)
		if i+1 < len(recs) {
			assert.True(t, rec.End.Equal(recs[i+1].Start), "history must be contiguous")
		}
	}
	assert.Equal(t, 1, openCount, "exactly one open interval per stream")

	findings, err := s.SweepInvariants(ctx)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

// TestObserve_ConcurrentDistinctStreams checks that different streams never
// interfere with each other.
func TestObserve_ConcurrentDistinctStreams(t *testing.T) {
	s := newTestStore(t)
	eng := NewEngine(s)
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		subject := fmt.Sprintf("u%d", i)
		g.Go(func() error {
			for j := 0; j < 10; j++ {
				state := fmt.Sprintf("state-%d", j)
				if _, err := eng.Observe(ctx, subject, interval.DomainPresence, state, ts(j)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < 8; i++ {
		subject := fmt.Sprintf("u%d", i)
		recs, err := s.ListOverlapping(ctx, subject, interval.DomainPresence, ts(-1), ts(100))
		require.NoError(t, err)
		assert.Len(t, recs, 10)

		open, err := s.GetOpen(ctx, subject, interval.DomainPresence)
		require.NoError(t, err)
		require.NotNil(t, open)
		assert.Equal(t, "state-9", open.State)
	}
}

func TestObserve_ZeroDurationReplacementNeedsLaterInstant(t *testing.T) {
	s := newTestStore(t)
	eng := NewEngine(s)
	ctx := context.Background()

	_, err := eng.Observe(ctx, "u1", interval.DomainPresence, "online", ts(0))
	require.NoError(t, err)

	// One nanosecond later is enough for an instantaneous replacement.
	out, err := eng.Observe(ctx, "u1", interval.DomainPresence, "idle", ts(0).Add(time.Nanosecond))
	require.NoError(t, err)
	assert.Equal(t, interval.Transitioned, out.Kind)
}
