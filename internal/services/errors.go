package services

import "errors"

// Domain errors surfaced by the service layer. Handlers map these to
// HTTP statuses; everything else is an internal error.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUsernameTaken is returned when another account already holds
	// the requested username.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrEmailTaken is returned when another account already holds the
	// requested email.
	ErrEmailTaken = errors.New("email already taken")

	// ErrBirthdayInFuture is returned for a birthday strictly after the
	// current time.
	ErrBirthdayInFuture = errors.New("birthday cannot be in the future")

	// ErrInvalidPrivilege is returned when a privilege reference does
	// not resolve to a privilege record.
	ErrInvalidPrivilege = errors.New("invalid privilege")

	// ErrInvalidCredentials is returned on failed authentication.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
