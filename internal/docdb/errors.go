package docdb

import (
	"errors"

	"github.com/maruel/docdb/internal/persist"
)

var (
	// ErrInvalidPath is returned by New when the snapshot path is unusable.
	ErrInvalidPath = persist.ErrInvalidPath
	// ErrPersistence is returned when a snapshot could not be written.
	ErrPersistence = persist.ErrPersistence
	// ErrInvalidKey is returned for an empty key.
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidValue is returned for a value that is not a document value.
	ErrInvalidValue = errors.New("invalid value")
	// ErrTypeMismatch is returned by array operations on a non-array entry.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrNotReady is returned by WaitReady when the initial load did not
	// complete in time.
	ErrNotReady = errors.New("store not ready")
)
