package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSubjectID = "subject_id"
	FieldUserID    = "user_id"
	FieldSessionID = "session_id"
	FieldChannelID = "channel_id"

	// Stream fields
	FieldDomain   = "domain"
	FieldOutcome  = "outcome"
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Process fields
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldPath      = "path"
)
