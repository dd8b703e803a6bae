package app

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrInvalidUserID signals a malformed or absent user id, rejected
	// before any store access.
	ErrInvalidUserID = errors.New("invalid user id")
)
