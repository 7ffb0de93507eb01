package interval

import "errors"

var (
	// ErrConflict signals an attempt to open a second concurrent interval for
	// a subject+domain. The caller raced another writer and must re-read the
	// current state before retrying.
	ErrConflict = errors.New("open interval already exists")

	// ErrOutOfOrder signals an observation whose timestamp does not come
	// strictly after the currently open interval's start. History is
	// append-only and monotonic per stream; the caller decides whether to
	// drop or reconcile the event.
	ErrOutOfOrder = errors.New("observation out of order")

	// ErrInvalidInterval signals a close with end <= start.
	ErrInvalidInterval = errors.New("interval end must be after start")

	// ErrNotFound signals a close or lookup against a stream with no open
	// interval. The caller likely holds stale state.
	ErrNotFound = errors.New("no open interval")
)
