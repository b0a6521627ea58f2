package shared

import "errors"

// Recoverable error classes surfaced to callers. Domain packages wrap these
// with fmt.Errorf("%w: ...") so handlers can map them to HTTP statuses with
// errors.Is while keeping the human-readable detail.
var (
	// ErrNotFound indicates the resource does not exist or is out of the
	// caller's scope.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the operation collides with current state, such
	// as a duplicate invoice for a period or an already-paid invoice.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
)
