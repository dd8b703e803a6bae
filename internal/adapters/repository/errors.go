package repository

import "errors"

// Sentinel kinds for store errors.
var (
	// ErrNotFound signals that a user has no leaderboard entry.
	ErrNotFound = errors.New("entry not found")
	// ErrConflict signals a conditional upsert lost a version race and
	// should be retried after re-reading the entry.
	ErrConflict = errors.New("entry version conflict")
	// ErrInvalidLimit signals a non-positive top-N limit.
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	// ErrUnavailable signals a transient storage or network failure; the
	// attempted mutation was not applied.
	ErrUnavailable = errors.New("store unavailable")
)
