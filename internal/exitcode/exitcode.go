// Package exitcode defines exit codes for the CLI.
package exitcode

import (
	"errors"

	"taskboard/internal/forms"
	"taskboard/internal/service"
)

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, not found, ambiguous,
	// invalid input).
	UserError = 1

	// AuthError indicates an auth/config error (not logged in, token
	// rejected, admin role required, invalid settings).
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3
)

// For maps an error from a service call to an exit code.
func For(err error) int {
	var ferrs forms.Errors
	switch {
	case err == nil:
		return Success
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrForbidden):
		return AuthError
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrAmbiguous), errors.As(err, &ferrs):
		return UserError
	default:
		return BackendError
	}
}
