// Package interval defines the temporal state-history model: time-bounded
// records of "this state was true from Start until End", with End left nil
// while the state is still active.
package interval

import (
	"time"
)

// Domain names an independently tracked attribute of a subject. Each
// (subject, domain) pair is its own single-open interval stream.
type Domain string

const (
	DomainName         Domain = "name"
	DomainPresence     Domain = "presence"
	DomainVoiceSession Domain = "voice_session"
)

const (
	activityDomainPrefix = "activity:"
	flagDomainPrefix     = "flag:"
)

// ActivityDomain returns the per-activity-type stream domain for a user.
// Concurrent activities of different types never share a stream.
func ActivityDomain(activityType string) Domain {
	return Domain(activityDomainPrefix + activityType)
}

// FlagDomain returns the per-flag sub-stream domain scoped to a voice session.
func FlagDomain(flag string) Domain {
	return Domain(flagDomainPrefix + flag)
}

// IsFlagDomain reports whether d is a voice-flag sub-stream domain.
func IsFlagDomain(d Domain) bool {
	return len(d) > len(flagDomainPrefix) && d[:len(flagDomainPrefix)] == flagDomainPrefix
}

// Record is one time-bounded interval of a subject's state in a domain.
//
// Start is inclusive and immutable once set. End is exclusive; nil means the
// state is still active (the "open" record). For a given subject and domain
// at most one record is ever open at a time.
type Record struct {
	ID        int64
	SubjectID string
	Domain    Domain
	State     string
	Start     time.Time
	End       *time.Time
}

// IsOpen reports whether the record represents the subject's current state.
func (r Record) IsOpen() bool {
	return r.End == nil
}

// Contains reports whether t falls within [Start, End). An open record
// contains every instant from Start onward.
func (r Record) Contains(t time.Time) bool {
	if t.Before(r.Start) {
		return false
	}
	return r.End == nil || t.Before(*r.End)
}

// DurationWithin returns how much of the record overlaps the window [t0, t1),
// i.e. min(End, t1) - max(Start, t0), clamped to zero. Open records use t1 as
// their effective end for summation only.
func (r Record) DurationWithin(t0, t1 time.Time) time.Duration {
	start := r.Start
	if start.Before(t0) {
		start = t0
	}
	end := t1
	if r.End != nil && r.End.Before(t1) {
		end = *r.End
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}
