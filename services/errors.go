package services

import "errors"

// Failure taxonomy surfaced to callers. Handlers map these onto HTTP statuses;
// everything else is an internal error.
var (
	// ErrInvalidState: the operation is not legal in the current session
	// status (e.g., tap while scheduled/ended, end while scheduled).
	ErrInvalidState = errors.New("operation not valid in current state")

	// ErrRateLimited: burst budget exceeded — transient, retry after the
	// window resets.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound: unknown session/game/definition id.
	ErrNotFound = errors.New("not found")
)
