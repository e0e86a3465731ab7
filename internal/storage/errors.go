package storage

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates the caller passed invalid parameters.
	// This is the only error class the engine surfaces to its callers.
	ErrInvalidInput = errors.New("invalid input")
)
