package track

import (
	"context"
	"fmt"
	"time"

	"github.com/statetrail/statetrail/internal/store"
)

// Recorder persists the point-event activity data that is not interval
// shaped: message metadata and custom statuses. Subjects are auto-registered
// on first sight.
type Recorder struct {
	store *store.Store
}

// NewRecorder creates a recorder backed by the given store.
func NewRecorder(st *store.Store) *Recorder {
	return &Recorder{store: st}
}

// RecordMessage stores metadata for one sent message. Redelivery of the same
// message id is a no-op.
func (r *Recorder) RecordMessage(ctx context.Context, m store.Message) error {
	if m.MessageID == "" || m.UserID == "" || m.ChannelID == "" {
		return fmt.Errorf("record message: message, user and channel ids are required")
	}
	if err := r.store.EnsureUser(ctx, m.UserID, m.SentAt); err != nil {
		return err
	}
	return r.store.RecordMessage(ctx, m)
}

// SetCustomStatus appends a custom status event for the user. Either text or
// emoji may be nil; both nil records an explicit clear.
func (r *Recorder) SetCustomStatus(ctx context.Context, userID string, text, emoji *string, at time.Time) error {
	if userID == "" {
		return fmt.Errorf("set custom status: user id is required")
	}
	if err := r.store.EnsureUser(ctx, userID, at); err != nil {
		return err
	}
	return r.store.SetCustomStatus(ctx, userID, text, emoji, at)
}
