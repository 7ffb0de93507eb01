package track

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/statetrail/statetrail/internal/discord"
	"github.com/statetrail/statetrail/internal/interval"
	"github.com/statetrail/statetrail/internal/log"
	"github.com/statetrail/statetrail/internal/metrics"
	"github.com/statetrail/statetrail/internal/store"
)

// Voice tracks voice channel sessions and their per-flag sub-streams.
//
// Sessions are opened and closed by join/leave events, not by generic
// observation: the session state (channel plus session id) is constant for
// the session's lifetime. Flag intervals are owned by the session subject
// ("session:<id>") and must never outlive it, so leaving force-closes all
// open flag intervals in the same transaction as the session close.
type Voice struct {
	store *store.Store
	eng   *Engine
	log   zerolog.Logger
}

// NewVoice creates the voice session tracker.
func NewVoice(st *store.Store, eng *Engine) *Voice {
	return &Voice{store: st, eng: eng, log: log.WithComponent("voice")}
}

// flagSubject is the interval subject owning a session's flag sub-streams.
func flagSubject(sessionID string) string {
	return "session:" + sessionID
}

// Join opens a voice session for the user and returns its session id.
//
// A join while a session is already open is a channel move: the open session
// and its flags are closed at `at` before the new session opens.
func (v *Voice) Join(ctx context.Context, userID, channelID string, at time.Time) (string, error) {
	if channelID == "" {
		return "", fmt.Errorf("voice join for %s: channel id must not be empty", userID)
	}

	unlock := v.eng.locks.lock(userID, interval.DomainVoiceSession)
	defer unlock()

	if err := v.store.EnsureUser(ctx, userID, at); err != nil {
		return "", err
	}

	cur, err := v.store.GetOpen(ctx, userID, interval.DomainVoiceSession)
	if err != nil {
		return "", err
	}
	var prevSessionID string
	if cur != nil {
		prev, err := discord.DecodeVoiceSessionState(cur.State)
		if err != nil {
			return "", fmt.Errorf("voice join for %s: %w", userID, err)
		}
		if !at.After(cur.Start) {
			return "", fmt.Errorf("voice join for %s at %s, open session started %s: %w",
				userID, at.Format(time.RFC3339Nano), cur.Start.Format(time.RFC3339Nano), interval.ErrOutOfOrder)
		}
		prevSessionID = prev.SessionID
	}

	sessionID := uuid.NewString()
	state := discord.VoiceSessionState{ChannelID: channelID, SessionID: sessionID}

	// On a channel move the old session's close and the new session's open
	// share one commit, so a crash cannot strand the user without a session.
	err = v.store.WithTx(ctx, func(tx *store.Tx) error {
		if prevSessionID != "" {
			if err := closeSessionTx(ctx, tx, userID, prevSessionID, at); err != nil {
				return err
			}
		}
		_, err := tx.AppendOpen(ctx, userID, interval.DomainVoiceSession, state.Encode(), at)
		return err
	})
	if err != nil {
		metrics.IncTransitionError(string(interval.DomainVoiceSession), errReason(err))
		return "", err
	}
	if prevSessionID != "" {
		metrics.VoiceSessionClosed()
		v.log.Debug().
			Str(log.FieldUserID, userID).
			Str(log.FieldSessionID, prevSessionID).
			Str(log.FieldChannelID, channelID).
			Str(log.FieldEvent, "channel_move").
			Msg("implicit session close on join")
	}
	metrics.VoiceSessionOpened()
	metrics.IncTransition(string(interval.DomainVoiceSession), string(interval.Opened))
	v.log.Debug().
		Str(log.FieldUserID, userID).
		Str(log.FieldSessionID, sessionID).
		Str(log.FieldChannelID, channelID).
		Str(log.FieldEvent, "join").
		Msg("voice session opened")
	return sessionID, nil
}

// SetFlag records a voice flag toggle for the session. The flag stream lives
// on the session subject; once the session is closed the toggle is rejected
// with interval.ErrNotFound, so no flag interval can open after its owner
// ended.
func (v *Voice) SetFlag(ctx context.Context, userID, sessionID string, flag discord.VoiceFlag, on bool, at time.Time) (interval.Outcome, error) {
	if !flag.Valid() {
		return interval.Outcome{}, fmt.Errorf("voice flag for %s: unknown flag %q", userID, flag)
	}

	unlock := v.eng.locks.lock(userID, interval.DomainVoiceSession)
	defer unlock()

	if err := v.requireOpenSession(ctx, userID, sessionID); err != nil {
		return interval.Outcome{}, err
	}

	state := "off"
	if on {
		state = "on"
	}
	return v.eng.Observe(ctx, flagSubject(sessionID), interval.FlagDomain(string(flag)), state, at)
}

// Leave closes the session at `at`, force-closing any still-open flag
// intervals with the same end in the same transaction.
func (v *Voice) Leave(ctx context.Context, userID, sessionID string, at time.Time) error {
	unlock := v.eng.locks.lock(userID, interval.DomainVoiceSession)
	defer unlock()

	if err := v.requireOpenSession(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := v.closeSessionLocked(ctx, userID, sessionID, at); err != nil {
		return err
	}
	v.log.Debug().
		Str(log.FieldUserID, userID).
		Str(log.FieldSessionID, sessionID).
		Str(log.FieldEvent, "leave").
		Msg("voice session closed")
	return nil
}

// requireOpenSession verifies the user's open session matches sessionID.
func (v *Voice) requireOpenSession(ctx context.Context, userID, sessionID string) error {
	cur, err := v.store.GetOpen(ctx, userID, interval.DomainVoiceSession)
	if err != nil {
		return err
	}
	if cur == nil {
		return fmt.Errorf("voice session %s for %s: %w", sessionID, userID, interval.ErrNotFound)
	}
	st, err := discord.DecodeVoiceSessionState(cur.State)
	if err != nil {
		return fmt.Errorf("voice session state for %s: %w", userID, err)
	}
	if st.SessionID != sessionID {
		return fmt.Errorf("voice session %s for %s is not the open session: %w", sessionID, userID, interval.ErrNotFound)
	}
	return nil
}

// closeSessionTx closes a session's flag sub-streams and then the session
// interval itself, inside the caller's transaction.
func closeSessionTx(ctx context.Context, tx *store.Tx, userID, sessionID string, at time.Time) error {
	if _, err := tx.CloseAllOpen(ctx, flagSubject(sessionID), at); err != nil {
		return err
	}
	_, err := tx.CloseOpen(ctx, userID, interval.DomainVoiceSession, at)
	return err
}

// closeSessionLocked closes the flag sub-streams and the session interval in
// one transaction. Caller must hold the user's session lock.
func (v *Voice) closeSessionLocked(ctx context.Context, userID, sessionID string, at time.Time) error {
	err := v.store.WithTx(ctx, func(tx *store.Tx) error {
		return closeSessionTx(ctx, tx, userID, sessionID, at)
	})
	if err != nil {
		metrics.IncTransitionError(string(interval.DomainVoiceSession), errReason(err))
		return err
	}
	metrics.VoiceSessionClosed()
	return nil
}
