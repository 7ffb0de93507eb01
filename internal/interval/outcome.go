package interval

// OutcomeKind classifies the effect of a single observation.
type OutcomeKind string

const (
	// Opened means no interval existed for the stream and a new one was opened.
	Opened OutcomeKind = "opened"
	// Unchanged means the observed state equals the current open state; the
	// observation is an idempotent re-ping and no record was written.
	Unchanged OutcomeKind = "unchanged"
	// Transitioned means the open interval was closed and a successor opened.
	Transitioned OutcomeKind = "transitioned"
)

// Outcome describes what an observation did to a stream.
type Outcome struct {
	Kind     OutcomeKind
	Previous string // canonical prior state, set only for Transitioned
	State    string // canonical state now open
	RecordID int64  // id of the open record (new or reused)
}
