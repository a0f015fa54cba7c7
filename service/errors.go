package service

import "errors"

// Sentinel errors surfaced to the transport layer. Anything else wrapping a
// store failure means the enclosing unit of work was rolled back whole.
var (
	// ErrMissingFields is returned when a required field is blank
	ErrMissingFields = errors.New("missing required fields")

	// ErrInvalidAmount is returned for zero or negative monetary amounts
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance is returned when a debit would overdraw a balance
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidTransition is returned for state machine violations
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound is returned for unknown users or requests
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller lacks the admin capability
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicateEmail is returned when the email is already registered
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials is returned on a failed login
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken is returned for unparseable or expired tokens
	ErrInvalidToken = errors.New("invalid token")
)
