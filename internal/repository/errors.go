package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when the backend refused a status change
	// because the record is no longer in the expected status.
	ErrConflict = errors.New("entity changed concurrently")

	// ErrIncomplete is returned when a stored record lacks fields the
	// tracking engine needs, such as pickup coordinates.
	ErrIncomplete = errors.New("entity is missing required fields")
)
