package savechange

import (
	"errors"
)

var (
	// ErrUnknownField is returned when a name is neither a field name nor a column of the schema.
	ErrUnknownField = errors.New("savechange: unknown field")

	// ErrDoesNotExist signals that a related object cannot be resolved yet.
	// Accessors return it from Get; it is suppressed while resolving the old
	// value of an assignment.
	ErrDoesNotExist = errors.New("savechange: related object does not exist")

	// ErrForceConflict is returned when a save forces both insert and update.
	ErrForceConflict = errors.New("savechange: cannot force both insert and update")
)
