package store

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a row violates a uniqueness
	// constraint, such as a message already stored for the account.
	ErrDuplicate = errors.New("duplicate")
)

// RetryableError wraps a driver error that may succeed if the operation
// is repeated, such as a busy or locked database.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable database error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err (or any error in its chain) is a
// RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// MapSQLError translates SQLite driver errors into store errors. Errors
// it does not recognise are returned unchanged.
func MapSQLError(err error) error {
	if err == nil {
		return nil
	}

	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}

	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}

	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return &RetryableError{Err: err}
	}

	return err
}
