package task

import "errors"

// Sentinel kinds for task errors.
var (
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrInvalidPoints     = errors.New("invalid task points")
)
