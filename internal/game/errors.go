package game

import "errors"

var (
	// ErrNotFound means the referenced room or participant does not exist.
	// Surfaced to the caller, never retried.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the operation is not permitted for the caller's
	// current state. No state mutation occurs.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict means a precondition was not met. Callers refresh from
	// the current snapshot instead of treating this as fatal.
	ErrConflict = errors.New("conflict")
)
