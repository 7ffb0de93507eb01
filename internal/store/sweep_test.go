package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statetrail/statetrail/internal/discord"
	"github.com/statetrail/statetrail/internal/interval"
)

func TestSweepInvariants_CleanStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AppendOpen(ctx, "u1", interval.DomainPresence, "online", ts(0))
	require.NoError(t, err)
	_, err = s.CloseAndAppend(ctx, id, "u1", interval.DomainPresence, "idle", ts(10))
	require.NoError(t, err)

	findings, err := s.SweepInvariants(ctx)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestSweepInvariants_FlagOutlivesSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := discord.VoiceSessionState{ChannelID: "c1", SessionID: "sess-1"}
	_, err := s.AppendOpen(ctx, "u1", interval.DomainVoiceSession, state.Encode(), ts(0))
	require.NoError(t, err)
	_, err = s.AppendOpen(ctx, "session:sess-1", interval.FlagDomain("self_mute"), "on", ts(1))
	require.NoError(t, err)

	// Close the session without force-closing its flags, as a buggy external
	// writer would.
	_, err = s.CloseOpen(ctx, "u1", interval.DomainVoiceSession, ts(10))
	require.NoError(t, err)

	findings, err := s.SweepInvariants(ctx)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0], "session:sess-1")
}

func TestSweepInvariants_FlagStartsOutsideSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := discord.VoiceSessionState{ChannelID: "c1", SessionID: "sess-1"}
	_, err := s.AppendOpen(ctx, "u1", interval.DomainVoiceSession, state.Encode(), ts(0))
	require.NoError(t, err)
	_, err = s.CloseOpen(ctx, "u1", interval.DomainVoiceSession, ts(10))
	require.NoError(t, err)

	// A flag recorded after the session already ended.
	fid, err := s.AppendOpen(ctx, "session:sess-1", interval.FlagDomain("self_mute"), "on", ts(20))
	require.NoError(t, err)
	_, err = s.CloseAndAppend(ctx, fid, "session:sess-1", interval.FlagDomain("self_mute"), "off", ts(25))
	require.NoError(t, err)

	findings, err := s.SweepInvariants(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, findings)
	assert.Contains(t, findings[0], "starts outside its session")
}

func TestSweepInvariants_NonFlagDomainOnSessionSubject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AppendOpen(ctx, "session:sess-1", interval.DomainPresence, "online", ts(0))
	require.NoError(t, err)

	findings, err := s.SweepInvariants(ctx)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0], "not a flag stream")
}

func TestSweepInvariants_OrphanFlagStream(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AppendOpen(ctx, "session:ghost", interval.FlagDomain("deaf"), "on", ts(0))
	require.NoError(t, err)

	findings, err := s.SweepInvariants(ctx)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0], "no owning session")
}
