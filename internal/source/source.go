package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/leadmail/internal/model"
)

// AuthError indicates that a mail server rejected the account's
// credentials. It is permanent and never retried.
type AuthError struct {
	Server  string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Server, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// TransientError wraps a connectivity failure that may succeed on retry:
// refused or reset connections, timeouts, TLS handshake failures and
// servers reporting themselves unavailable.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// ConfigError indicates an account that cannot be polled as configured,
// such as a missing server, username, password or AI key.
type ConfigError struct {
	AccountID string
	Field     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("account %s: missing %s", e.AccountID, e.Field)
}

// IsConfigError reports whether err (or any error in its chain) is a
// ConfigError.
func IsConfigError(err error) bool {
	var c *ConfigError
	return errors.As(err, &c)
}

// Session is an authenticated mailbox session with the mailbox selected.
type Session interface {
	// SearchSince returns the UIDs of messages received on or after
	// since, in ascending order. A non-empty from restricts the search to
	// that sender.
	SearchSince(ctx context.Context, since time.Time, from string) ([]uint32, error)

	// Fetch returns the full message for a UID without marking it seen.
	Fetch(ctx context.Context, uid uint32) (*model.RawMessage, error)

	Close() error
}

// Connector opens mailbox sessions for accounts.
type Connector interface {
	Connect(ctx context.Context, account *model.MailAccount) (Session, error)
}
