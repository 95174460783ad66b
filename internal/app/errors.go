package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrValidation rejects malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState rejects an operation the entity's state does not allow.
	ErrInvalidState = errors.New("invalid state")
	ErrNotStarted   = errors.New("service not started")
)
