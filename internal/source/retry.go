package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/nhle/leadmail/internal/model"
)

// DefaultRetryDelays is the backoff between connection attempts.
var DefaultRetryDelays = []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryOption configures a RetryConnector.
type RetryOption func(*RetryConnector)

// WithSleep replaces the backoff wait, for tests.
func WithSleep(fn SleepFunc) RetryOption {
	return func(r *RetryConnector) { r.sleep = fn }
}

// WithBreaker sets how many consecutive exhausted connects trip a
// server's breaker and how long it stays open.
func WithBreaker(trips uint32, open time.Duration) RetryOption {
	return func(r *RetryConnector) {
		r.breakerTrips = trips
		r.breakerOpen = open
	}
}

// RetryConnector retries transient connection failures with backoff.
// Auth and other permanent failures are returned at once. A circuit
// breaker per mail server stops attempts against a server that exhausted
// its retries in consecutive cycles.
type RetryConnector struct {
	next   Connector
	delays []time.Duration
	sleep  SleepFunc
	logger zerolog.Logger

	breakerTrips uint32
	breakerOpen  time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// WithRetry wraps next so that Connect retries transient failures.
func WithRetry(next Connector, delays []time.Duration, logger zerolog.Logger, opts ...RetryOption) *RetryConnector {
	r := &RetryConnector{
		next:         next,
		delays:       delays,
		sleep:        sleepContext,
		logger:       logger,
		breakerTrips: 2,
		breakerOpen:  15 * time.Minute,
		breakers:     make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect implements Connector.
func (r *RetryConnector) Connect(ctx context.Context, account *model.MailAccount) (Session, error) {
	addr := account.Addr()
	cb := r.breaker(addr)

	out, err := cb.Execute(func() (interface{}, error) {
		return r.connectWithRetry(ctx, account)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &TransientError{Op: "connecting to " + addr, Err: err}
	}
	if err != nil {
		return nil, err
	}
	return out.(Session), nil
}

func (r *RetryConnector) connectWithRetry(ctx context.Context, account *model.MailAccount) (Session, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		session, err := r.next.Connect(ctx, account)
		if err == nil {
			if attempt > 0 {
				r.logger.Info().
					Str("account", account.ID).
					Int("attempt", attempt+1).
					Msg("connected after retry")
			}
			return session, nil
		}
		lastErr = err

		if !IsTransient(err) || attempt >= len(r.delays) {
			break
		}

		delay := r.delays[attempt]
		r.logger.Warn().
			Err(err).
			Str("account", account.ID).
			Int("attempt", attempt+1).
			Dur("retry_in", delay).
			Msg("connect failed, retrying")

		if err := r.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("waiting to reconnect: %w", err)
		}
	}

	if IsTransient(lastErr) {
		return nil, fmt.Errorf("connecting after %d attempts: %w", len(r.delays)+1, lastErr)
	}
	return nil, lastErr
}

func (r *RetryConnector) breaker(addr string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[addr]
	if ok {
		return cb
	}

	trips := r.breakerTrips
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        addr,
		MaxRequests: 1,
		Timeout:     r.breakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		// Only exhausted transient failures count against the server.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn().
				Str("server", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("imap circuit breaker state changed")
		},
	})
	r.breakers[addr] = cb
	return cb
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
