package services

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not_found")
	// ErrForbidden is returned when the caller's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput wraps input the store cannot accept.
	ErrInvalidInput = errors.New("invalid_input")
	// ErrInvalidTransition is returned for a status change the workflow does not allow.
	ErrInvalidTransition = errors.New("invalid_status_transition")
)
