// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/tempora-app/tempora/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Anything
// outside the recoverable taxonomy becomes a generic 500 with no detail so
// internals never leak to callers.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsInternal reports whether the error falls outside the recoverable
// taxonomy and should be logged as a server error.
func IsInternal(err error) bool {
	return err != nil &&
		!errors.Is(err, shared.ErrNotFound) &&
		!errors.Is(err, shared.ErrConflict) &&
		!errors.Is(err, shared.ErrIdempotencyConflict) &&
		!errors.Is(err, shared.ErrValidation)
}
