package services

import "errors"

// Typed failures surfaced by the complaint lifecycle and analytics services.
// Controllers match these with errors.Is and translate them to HTTP status
// codes; nothing is swallowed internally.
var (
	// ErrPermissionDenied means the actor lacks the role or ownership the
	// operation requires.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidState means the operation was attempted outside its allowed
	// status set, e.g. rating a complaint that is not resolved yet.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrAlreadyAssigned means a staff member tried to claim a complaint
	// that is already held.
	ErrAlreadyAssigned = errors.New("complaint already assigned")

	// ErrAlreadyRated means the owning customer already submitted a rating;
	// the first write wins.
	ErrAlreadyRated = errors.New("complaint already rated")

	// ErrNotFound means no complaint or user matches the given identifier.
	ErrNotFound = errors.New("not found")

	// ErrConflictRetryable means a concurrent write won the race (status
	// compare-and-swap or complaint code allocation). The caller should
	// retry the whole operation.
	ErrConflictRetryable = errors.New("conflicting concurrent update, retry")
)
