package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a unique constraint rejects a write.
	// Concurrent ticket submissions for the same coordinate surface this;
	// callers treat it as "already open", not as a failure.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)
