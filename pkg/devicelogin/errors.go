package devicelogin

import (
	"errors"
	"fmt"
)

// ErrExpired is returned when the user does not confirm the login within
// the polling ceiling. The pending token is discarded; a new login must be
// started.
var ErrExpired = errors.New("login confirmation timed out, please start the login again")

// ErrInProgress guards against re-entrant polling: only one poll loop may
// be active per pending token.
var ErrInProgress = errors.New("a login is already in progress")

// StartError reports a failed or malformed device authorization request.
type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("could not start device authorization: %v", e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// VerificationError reports an unexpected answer while polling for the
// user's confirmation. It aborts the flow without retry.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("could not verify login confirmation: %v", e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// RoleNotAllowedError is the role gate rejection. It is a business rule,
// not a transient failure: credentials are cleared and the login is never
// retried automatically.
type RoleNotAllowedError struct {
	Role string
}

func (e *RoleNotAllowedError) Error() string {
	return fmt.Sprintf("your role %q is not allowed to use this application, please contact your fleet manager", e.Role)
}
