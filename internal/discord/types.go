// Package discord defines the tracked state vocabulary: presence statuses,
// activity types, voice flags and name tuples, with canonical string
// encodings used for storage and equality.
package discord

import (
	"encoding/json"
	"fmt"
)

// Status is a presence status.
type Status string

const (
	StatusOnline    Status = "online"
	StatusIdle      Status = "idle"
	StatusDnd       Status = "dnd"
	StatusOffline   Status = "offline"
	StatusStreaming Status = "streaming"
)

// Valid reports whether the status is a known presence value.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusIdle, StatusDnd, StatusOffline, StatusStreaming:
		return true
	}
	return false
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown presence status %q", raw)
	}
	return s, nil
}

// ActivityType classifies an activity (playing, listening, ...).
type ActivityType string

const (
	ActivityCompeting ActivityType = "competing"
	ActivityCustom    ActivityType = "custom"
	ActivityListening ActivityType = "listening"
	ActivityPlaying   ActivityType = "playing"
	ActivityStreaming ActivityType = "streaming"
	ActivityWatching  ActivityType = "watching"
)

// Valid reports whether the activity type is known.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityCompeting, ActivityCustom, ActivityListening,
		ActivityPlaying, ActivityStreaming, ActivityWatching:
		return true
	}
	return false
}

// Activity is one tracked activity: its type plus the activity name
// (game name, stream title, song, ...).
type Activity struct {
	Type ActivityType
	Name string
}

// VoiceFlag is one independently tracked voice state toggle.
type VoiceFlag string

const (
	FlagDeaf       VoiceFlag = "deaf"
	FlagMute       VoiceFlag = "mute"
	FlagSelfDeaf   VoiceFlag = "self_deaf"
	FlagSelfMute   VoiceFlag = "self_mute"
	FlagSelfStream VoiceFlag = "self_stream"
	FlagSelfVideo  VoiceFlag = "self_video"
)

// Valid reports whether the flag is known.
func (f VoiceFlag) Valid() bool {
	switch f {
	case FlagDeaf, FlagMute, FlagSelfDeaf, FlagSelfMute, FlagSelfStream, FlagSelfVideo:
		return true
	}
	return false
}

// NameState is the full name tuple of a user at a point in time. Any field
// changing opens a new history interval.
type NameState struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	GlobalName  string `json:"global_name,omitempty"`
}

// Encode returns the canonical encoding of the tuple. Two NameStates are
// equal exactly when their encodings are equal.
func (n NameState) Encode() string {
	b, _ := json.Marshal(n)
	return string(b)
}

// DecodeNameState parses a canonical name tuple encoding.
func DecodeNameState(raw string) (NameState, error) {
	var n NameState
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return NameState{}, fmt.Errorf("decode name state: %w", err)
	}
	return n, nil
}

// VoiceSessionState is the constant state of a voice session interval: the
// channel joined and the session's own id, which scopes flag sub-streams.
type VoiceSessionState struct {
	ChannelID string `json:"channel_id"`
	SessionID string `json:"session_id"`
}

// Encode returns the canonical encoding of the session state.
func (v VoiceSessionState) Encode() string {
	b, _ := json.Marshal(v)
	return string(b)
}

// DecodeVoiceSessionState parses a canonical session state encoding.
func DecodeVoiceSessionState(raw string) (VoiceSessionState, error) {
	var v VoiceSessionState
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return VoiceSessionState{}, fmt.Errorf("decode voice session state: %w", err)
	}
	return v, nil
}
