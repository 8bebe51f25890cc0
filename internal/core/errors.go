package core

import "errors"

var (
	// ErrInvalidCredentials covers both unknown username and wrong password;
	// callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrForbidden is returned when a registration is attempted by anyone
	// other than an authenticated teacher once users exist.
	ErrForbidden = errors.New("only a teacher can create new accounts")

	ErrMissingCredentials = errors.New("username and password are required")
	ErrMissingPrompt      = errors.New("missing prompt")
	ErrMissingSketch      = errors.New("missing sketch file")
	ErrMissingPriorImage  = errors.New("missing lastImage (data URL)")
)
