package track

import (
	"context"
	"fmt"
	"time"

	"github.com/statetrail/statetrail/internal/discord"
	"github.com/statetrail/statetrail/internal/interval"
)

// Names tracks the username/display-name/global-name tuple. Any field change
// opens a new history interval; equality is over the full tuple.
type Names struct {
	eng *Engine
}

// NewNames creates the name history tracker.
func NewNames(eng *Engine) *Names {
	return &Names{eng: eng}
}

// Observe records the user's current name tuple as of `at`.
func (n *Names) Observe(ctx context.Context, userID string, name discord.NameState, at time.Time) (interval.Outcome, error) {
	if name.Username == "" {
		return interval.Outcome{}, fmt.Errorf("observe name for %s: username must not be empty", userID)
	}
	if err := n.eng.store.EnsureUser(ctx, userID, at); err != nil {
		return interval.Outcome{}, err
	}
	return n.eng.Observe(ctx, userID, interval.DomainName, name.Encode(), at)
}

// Presence tracks the presence status stream.
type Presence struct {
	eng *Engine
}

// NewPresence creates the presence tracker.
func NewPresence(eng *Engine) *Presence {
	return &Presence{eng: eng}
}

// Observe records the user's presence status as of `at`. Repeated pings of
// the same status collapse into the existing open interval.
func (p *Presence) Observe(ctx context.Context, userID string, status discord.Status, at time.Time) (interval.Outcome, error) {
	if !status.Valid() {
		return interval.Outcome{}, fmt.Errorf("observe presence for %s: unknown status %q", userID, status)
	}
	if err := p.eng.store.EnsureUser(ctx, userID, at); err != nil {
		return interval.Outcome{}, err
	}
	return p.eng.Observe(ctx, userID, interval.DomainPresence, string(status), at)
}

// Activities tracks activity streams. Concurrent activities are modeled as
// independent streams keyed by activity type, so a user playing a game while
// listening to music holds two open intervals that never interfere.
type Activities struct {
	eng *Engine
}

// NewActivities creates the activity tracker.
func NewActivities(eng *Engine) *Activities {
	return &Activities{eng: eng}
}

// Observe records that the activity is running as of `at`. A changed name
// within the same type transitions that type's stream.
func (a *Activities) Observe(ctx context.Context, userID string, act discord.Activity, at time.Time) (interval.Outcome, error) {
	if !act.Type.Valid() {
		return interval.Outcome{}, fmt.Errorf("observe activity for %s: unknown type %q", userID, act.Type)
	}
	if act.Name == "" {
		return interval.Outcome{}, fmt.Errorf("observe activity for %s: name must not be empty", userID)
	}
	if err := a.eng.store.EnsureUser(ctx, userID, at); err != nil {
		return interval.Outcome{}, err
	}
	return a.eng.Observe(ctx, userID, interval.ActivityDomain(string(act.Type)), act.Name, at)
}

// End closes the user's open interval for the given activity type, when the
// activity stops without a successor.
func (a *Activities) End(ctx context.Context, userID string, activityType discord.ActivityType, at time.Time) error {
	if !activityType.Valid() {
		return fmt.Errorf("end activity for %s: unknown type %q", userID, activityType)
	}
	_, err := a.eng.End(ctx, userID, interval.ActivityDomain(string(activityType)), at)
	return err
}
