package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrVersionConflict is returned when a compare-and-set on a record version fails.
	ErrVersionConflict = errors.New("persistence: version conflict")
	// ErrDuplicate is returned when a unique attribute is already taken.
	ErrDuplicate = errors.New("persistence: duplicate record")
)
