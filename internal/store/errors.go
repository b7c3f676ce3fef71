// ABOUTME: Error kinds surfaced by the store: invalid input, conflict,
// ABOUTME: not-found sentinels plus transient (busy/locked) classification.
package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrInvalidInput marks a malformed job submission. Wrapped with detail;
	// check with errors.Is.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateID is returned when enqueueing a job whose id already
	// exists. The existing row is never overwritten.
	ErrDuplicateID = errors.New("job id already exists")

	// ErrNotFound is returned by operations that require a specific row in a
	// specific state, e.g. DLQ retry on an id that is missing or not dead.
	ErrNotFound = errors.New("job not found")
)

// IsTransient reports whether err is a short-lived storage contention error
// (SQLITE_BUSY or SQLITE_LOCKED). Callers retry these after a short sleep
// instead of surfacing them.
func IsTransient(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	return false
}

// isDuplicate reports whether err is a primary-key violation on insert.
func isDuplicate(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			serr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
