package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means no API key is available for the provider.
	ErrNotConfigured = errors.New("ai service not configured")

	// ErrAPICallFailed covers network failures and non-2xx responses.
	ErrAPICallFailed = errors.New("ai api call failed")

	// ErrInvalidResponse means the provider answered with something that
	// could not be used.
	ErrInvalidResponse = errors.New("invalid ai response")
)

// ServiceError is returned by every AI operation. Err wraps one of the
// sentinels above, so callers can test with errors.Is.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ai %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// newServiceError wraps cause under a sentinel.
func newServiceError(op string, sentinel, cause error) *ServiceError {
	if cause == nil {
		return &ServiceError{Op: op, Err: sentinel}
	}
	return &ServiceError{Op: op, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}
