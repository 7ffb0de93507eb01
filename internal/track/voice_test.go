package track

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statetrail/statetrail/internal/discord"
	"github.com/statetrail/statetrail/internal/interval"
)

func newVoice(t *testing.T) (*Voice, *Engine) {
	t.Helper()
	s := newTestStore(t)
	eng := NewEngine(s)
	return NewVoice(s, eng), eng
}

func TestVoice_JoinOpensSession(t *testing.T) {
	v, eng := newVoice(t)
	ctx := context.Background()

	sessionID, err := v.Join(ctx, "u1", "c1", ts(0))
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	open, err := eng.store.GetOpen(ctx, "u1", interval.DomainVoiceSession)
	require.NoError(t, err)
	require.NotNil(t, open)

	st, err := discord.DecodeVoiceSessionState(open.State)
	require.NoError(t, err)
	assert.Equal(t, "c1", st.ChannelID)
	assert.Equal(t, sessionID, st.SessionID)

	u, err := eng.store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u, "join registers the user")
}

func TestVoice_LeaveForceClosesFlags(t *testing.T) {
	v, eng := newVoice(t)
	ctx := context.Background()

	sessionID, err := v.Join(ctx, "u1", "c1", ts(0))
	require.NoError(t, err)

	_, err = v.SetFlag(ctx, "u1", sessionID, discord.FlagSelfMute, true, ts(1))
	require.NoError(t, err)
	_, err = v.SetFlag(ctx, "u1", sessionID, discord.FlagSelfVideo, true, ts(2))
	require.NoError(t, err)

	require.NoError(t, v.Leave(ctx, "u1", sessionID, ts(10)))

	// Session closed at t10 and every flag interval closed at the same end.
	session, err := eng.store.GetAt(ctx, "u1", interval.DomainVoiceSession, ts(5))
	require.NoError(t, err)
	require.NotNil(t, session)
	require.NotNil(t, session.End)
	assert.True(t, session.End.Equal(ts(10)))

	for _, flag := range []discord.VoiceFlag{discord.FlagSelfMute, discord.FlagSelfVideo} {
		recs, err := eng.store.ListOverlapping(ctx, flagSubject(sessionID), interval.FlagDomain(string(flag)), ts(-1), ts(100))
		require.NoError(t, err)
		require.NotEmpty(t, recs)
		last := recs[len(recs)-1]
		require.NotNil(t, last.End, "no flag interval may outlive its session")
		assert.True(t, last.End.Equal(ts(10)))
	}

	findings, err := eng.store.SweepInvariants(ctx)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestVoice_FlagAfterLeaveRejected(t *testing.T) {
	v, _ := newVoice(t)
	ctx := context.Background()

	sessionID, err := v.Join(ctx, "u1", "c1", ts(0))
	require.NoError(t, err)
	require.NoError(t, v.Leave(ctx, "u1", sessionID, ts(5)))

	_, err = v.SetFlag(ctx, "u1", sessionID, discord.FlagSelfMute, true, ts(6))
	require.ErrorIs(t, err, interval.ErrNotFound)
}

func TestVoice_FlagToggleIsStream(t *testing.T) {
	v, eng := newVoice(t)
	ctx := context.Background()

	sessionID, err := v.Join(ctx, "u1", "c1", ts(0))
	require.NoError(t, err)

	out, err := v.SetFlag(ctx, "u1", sessionID, discord.FlagSelfMute, true, ts(1))
	require.NoError(t, err)
	assert.Equal(t, interval.Opened, out.Kind)

	// Same value repeated: no fragmentation.
	out, err = v.SetFlag(ctx, "u1", sessionID, discord.FlagSelfMute, true, ts(2))
	require.NoError(t, err)
	assert.Equal(t, interval.Unchanged, out.Kind)

	out, err = v.SetFlag(ctx, "u1", sessionID, discord.FlagSelfMute, false, ts(3))
	require.NoError(t, err)
	assert.Equal(t, interval.Transitioned, out.Kind)

	recs, err := eng.store.ListOverlapping(ctx, flagSubject(sessionID), interval.FlagDomain("self_mute"), ts(-1), ts(100))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "on", recs[0].State)
	assert.Equal(t, "off", recs[1].State)
}

func TestVoice_JoinWhileOpenIsChannelMove(t *testing.T) {
	v, eng := newVoice(t)
	ctx := context.Background()

	first, err := v.Join(ctx, "u1", "c1", ts(0))
	require.NoError(t, err)
	_, err = v.SetFlag(ctx, "u1", first, discord.FlagSelfMute, true, ts(1))
	require.NoError(t, err)

	second, err := v.Join(ctx, "u1", "c2", ts(5))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// The first session and its flags ended when the move happened.
	recs, err := eng.store.ListOverlapping(ctx, "u1", interval.DomainVoiceSession, ts(-1), ts(100))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.NotNil(t, recs[0].End)
	assert.True(t, recs[0].End.Equal(ts(5)))
	assert.Nil(t, recs[1].End)
	assert.True(t, recs[1].Start.Equal(ts(5)), "close and open happen at the same instant, as one write")

	open, err := eng.store.GetOpen(ctx, "u1", interval.DomainVoiceSession)
	require.NoError(t, err)
	require.NotNil(t, open, "a move must never leave the user without an open session")

	flagRecs, err := eng.store.ListOverlapping(ctx, flagSubject(first), interval.FlagDomain("self_mute"), ts(-1), ts(100))
	require.NoError(t, err)
	require.Len(t, flagRecs, 1)
	require.NotNil(t, flagRecs[0].End)
	assert.True(t, flagRecs[0].End.Equal(ts(5)))

	// Flags keyed to the stale session are rejected.
	_, err = v.SetFlag(ctx, "u1", first, discord.FlagSelfMute, false, ts(6))
	require.ErrorIs(t, err, interval.ErrNotFound)
}

func TestVoice_LeaveCoalescesZeroLengthFlags(t *testing.T) {
	v, eng := newVoice(t)
	ctx := context.Background()

	sessionID, err := v.Join(ctx, "u1", "c1", ts(0))
	require.NoError(t, err)

	// Flag raised at the same instant the user leaves: the would-be interval
	// has no duration and is coalesced away rather than stored.
	_, err = v.SetFlag(ctx, "u1", sessionID, discord.FlagSelfStream, true, ts(5))
	require.NoError(t, err)
	require.NoError(t, v.Leave(ctx, "u1", sessionID, ts(5)))

	recs, err := eng.store.ListOverlapping(ctx, flagSubject(sessionID), interval.FlagDomain("self_stream"), ts(-1), ts(100))
	require.NoError(t, err)
	assert.Empty(t, recs)

	findings, err := eng.store.SweepInvariants(ctx)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestVoice_LeaveValidatesSession(t *testing.T) {
	v, _ := newVoice(t)
	ctx := context.Background()

	err := v.Leave(ctx, "u1", "nope", ts(1))
	require.ErrorIs(t, err, interval.ErrNotFound)

	sessionID, err := v.Join(ctx, "u1", "c1", ts(0))
	require.NoError(t, err)

	err = v.Leave(ctx, "u1", "other-session", ts(1))
	require.ErrorIs(t, err, interval.ErrNotFound)

	require.NoError(t, v.Leave(ctx, "u1", sessionID, ts(1)))
}
