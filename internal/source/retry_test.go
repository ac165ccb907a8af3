package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/leadmail/internal/model"
)

type nopSession struct{}

func (nopSession) SearchSince(context.Context, time.Time, string) ([]uint32, error) { return nil, nil }
func (nopSession) Fetch(context.Context, uint32) (*model.RawMessage, error)         { return nil, nil }
func (nopSession) Close() error                                                    { return nil }

// scriptedConnector returns the scripted errors in order, then succeeds.
type scriptedConnector struct {
	errs  []error
	calls int
}

func (c *scriptedConnector) Connect(context.Context, *model.MailAccount) (Session, error) {
	c.calls++
	if c.calls <= len(c.errs) {
		return nil, c.errs[c.calls-1]
	}
	return nopSession{}, nil
}

func unavailable() error {
	return &TransientError{Op: "connecting", Err: errors.New("[UNAVAILABLE] try later")}
}

func recordSleeps(slept *[]time.Duration) RetryOption {
	return WithSleep(func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	})
}

var testAccount = &model.MailAccount{ID: "acc-1", MailServer: "imap.example.com", UseTLS: true}

func TestRetryConnector_SucceedsOnThirdAttempt(t *testing.T) {
	next := &scriptedConnector{errs: []error{unavailable(), unavailable()}}
	var slept []time.Duration
	r := WithRetry(next, DefaultRetryDelays, zerolog.Nop(), recordSleeps(&slept))

	s, err := r.Connect(context.Background(), testAccount)
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, slept)
}

func TestRetryConnector_AuthErrorNotRetried(t *testing.T) {
	next := &scriptedConnector{errs: []error{&AuthError{Server: "imap", Message: "bad password"}}}
	var slept []time.Duration
	r := WithRetry(next, DefaultRetryDelays, zerolog.Nop(), recordSleeps(&slept))

	_, err := r.Connect(context.Background(), testAccount)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, next.calls)
	assert.Empty(t, slept)
}

func TestRetryConnector_ExhaustsRetries(t *testing.T) {
	next := &scriptedConnector{errs: []error{unavailable(), unavailable(), unavailable(), unavailable()}}
	var slept []time.Duration
	r := WithRetry(next, DefaultRetryDelays, zerolog.Nop(), recordSleeps(&slept))

	_, err := r.Connect(context.Background(), testAccount)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 4, next.calls)
	assert.Equal(t, DefaultRetryDelays, slept)
}

func TestRetryConnector_CancelledWhileWaiting(t *testing.T) {
	next := &scriptedConnector{errs: []error{unavailable(), unavailable()}}
	r := WithRetry(next, DefaultRetryDelays, zerolog.Nop(), WithSleep(func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}))

	_, err := r.Connect(context.Background(), testAccount)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, next.calls)
}

func TestRetryConnector_BreakerOpensAfterConsecutiveCycles(t *testing.T) {
	down := make([]error, 8)
	for i := range down {
		down[i] = unavailable()
	}
	next := &scriptedConnector{errs: down}
	r := WithRetry(next, []time.Duration{time.Millisecond}, zerolog.Nop(),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
		WithBreaker(2, time.Hour),
	)

	for range 2 {
		_, err := r.Connect(context.Background(), testAccount)
		require.Error(t, err)
	}
	require.Equal(t, 4, next.calls)

	_, err := r.Connect(context.Background(), testAccount)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 4, next.calls, "open breaker must not dial")
}

func TestRetryConnector_AuthFailuresDoNotTripBreaker(t *testing.T) {
	auth := &AuthError{Server: "imap", Message: "denied"}
	next := &scriptedConnector{errs: []error{auth, auth, auth}}
	r := WithRetry(next, nil, zerolog.Nop(), WithBreaker(2, time.Hour))

	for range 3 {
		_, err := r.Connect(context.Background(), testAccount)
		assert.True(t, IsAuthError(err))
	}
	assert.Equal(t, 3, next.calls)

	_, err := r.Connect(context.Background(), testAccount)
	assert.NoError(t, err)
}

func TestErrorHelpers(t *testing.T) {
	wrapped := errors.Join(errors.New("ctx"), &ConfigError{AccountID: "a", Field: "password"})
	assert.True(t, IsConfigError(wrapped))
	assert.False(t, IsTransient(wrapped))
	assert.EqualError(t, &ConfigError{AccountID: "a", Field: "password"}, "account a: missing password")

	inner := errors.New("reset")
	te := &TransientError{Op: "fetch", Err: inner}
	assert.ErrorIs(t, te, inner)
}
