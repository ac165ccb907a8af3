package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/leadmail/internal/ingest"
	"github.com/nhle/leadmail/internal/model"
)

type fakeClock struct {
	mu  gosync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTicker struct {
	c       chan time.Time
	mu      gosync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

type fakeAccounts struct {
	accounts []model.MailAccount
	err      error
}

func (f *fakeAccounts) ListAccounts(_ context.Context, enabledOnly bool) ([]model.MailAccount, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.MailAccount
	for _, a := range f.accounts {
		if !enabledOnly || a.Enabled {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeRunner struct {
	mu        gosync.Mutex
	clock     *fakeClock
	calls     []string
	deadlines []bool
	errs      map[string]error
	block     map[string]chan struct{}
	started   chan string
}

func newFakeRunner(clock *fakeClock) *fakeRunner {
	return &fakeRunner{
		clock:   clock,
		errs:    map[string]error{},
		block:   map[string]chan struct{}{},
		started: make(chan string, 16),
	}
}

func (r *fakeRunner) RunAccount(ctx context.Context, a *model.MailAccount) *ingest.CycleReport {
	_, hasDeadline := ctx.Deadline()

	r.mu.Lock()
	r.calls = append(r.calls, a.ID)
	r.deadlines = append(r.deadlines, hasDeadline)
	block := r.block[a.ID]
	err := r.errs[a.ID]
	r.mu.Unlock()

	r.started <- a.ID
	if block != nil {
		<-block
	}
	return &ingest.CycleReport{AccountID: a.ID, AccountName: a.Name, Started: r.clock.Now(), Err: err}
}

func (r *fakeRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func testAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: []model.MailAccount{
		{ID: "a", Name: "alpha", Enabled: true},
		{ID: "b", Name: "beta", Enabled: true, PollIntervalSec: 600},
		{ID: "c", Name: "gamma", Enabled: false},
	}}
}

func newTestScheduler(accounts AccountLister, runner Runner, clock *fakeClock, ticker *fakeTicker) *Scheduler {
	return New(accounts, runner, Options{
		Interval:    5 * time.Minute,
		CycleBudget: time.Minute,
		Now:         clock.Now,
		NewTicker:   func(time.Duration) Ticker { return ticker },
		Logger:      zerolog.Nop(),
	})
}

func waitReports(t *testing.T, s *Scheduler, n int) []*ingest.CycleReport {
	t.Helper()
	var out []*ingest.CycleReport
	for len(out) < n {
		select {
		case r := <-s.Reports():
			out = append(out, r)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %d reports, got %d", n, len(out))
		}
	}
	return out
}

func reportIDs(reports []*ingest.CycleReport) []string {
	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.AccountID)
	}
	return ids
}

func TestScheduler_TicksHonourAccountIntervals(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)}
	ticker := &fakeTicker{c: make(chan time.Time)}
	runner := newFakeRunner(clock)
	s := newTestScheduler(testAccounts(), runner, clock, ticker)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, []string{"a", "b"}, reportIDs(waitReports(t, s, 2)), "initial cycle runs enabled accounts")

	clock.Advance(5 * time.Minute)
	ticker.c <- clock.Now()
	assert.Equal(t, []string{"a"}, reportIDs(waitReports(t, s, 1)), "b polls every 10 minutes")

	clock.Advance(5 * time.Minute)
	ticker.c <- clock.Now()
	assert.Equal(t, []string{"a", "b"}, reportIDs(waitReports(t, s, 2)))

	runner.mu.Lock()
	for _, d := range runner.deadlines {
		assert.True(t, d, "cycles carry the budget deadline")
	}
	runner.mu.Unlock()
}

func TestScheduler_TriggerRunsEveryAccount(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)}
	ticker := &fakeTicker{c: make(chan time.Time)}
	runner := newFakeRunner(clock)
	s := newTestScheduler(testAccounts(), runner, clock, ticker)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	waitReports(t, s, 2)

	s.Trigger()
	assert.Equal(t, []string{"a", "b"}, reportIDs(waitReports(t, s, 2)))
}

func TestScheduler_StartStop(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	ticker := &fakeTicker{c: make(chan time.Time)}
	s := newTestScheduler(testAccounts(), newFakeRunner(clock), clock, ticker)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)
	waitReports(t, s, 2)

	s.Stop()
	s.Stop()

	ticker.mu.Lock()
	assert.True(t, ticker.stopped)
	ticker.mu.Unlock()

	require.NoError(t, s.Start(context.Background()), "a stopped scheduler can be restarted")
	s.Stop()
}

func TestScheduler_SkipsAccountStillRunning(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	runner := newFakeRunner(clock)
	release := make(chan struct{})
	runner.block["a"] = release
	s := newTestScheduler(testAccounts(), runner, clock, &fakeTicker{c: make(chan time.Time)})

	ctx := context.Background()
	first := make(chan []*ingest.CycleReport, 1)
	go func() {
		reports, _ := s.RunOnce(ctx, "a")
		first <- reports
	}()
	require.Equal(t, "a", <-runner.started)

	reports, err := s.RunOnce(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, reports, "overlapping cycle is skipped")

	statuses := s.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, SyncRunning, statuses[0].State)

	close(release)
	assert.Len(t, <-first, 1)
	assert.Equal(t, []string{"a"}, runner.Calls())
}

func TestScheduler_RunOnce(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	runner := newFakeRunner(clock)
	runner.errs["b"] = errors.New("connecting: refused")
	s := newTestScheduler(testAccounts(), runner, clock, &fakeTicker{c: make(chan time.Time)})

	reports, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, reportIDs(reports))

	statuses := s.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "alpha", statuses[0].AccountName)
	assert.Equal(t, SyncIdle, statuses[0].State)
	assert.Equal(t, SyncError, statuses[1].State)
	assert.EqualError(t, statuses[1].Error, "connecting: refused")
	assert.Same(t, reports[1], statuses[1].LastReport)

	reports, err = s.RunOnce(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, reportIDs(reports), "explicit ids include disabled accounts")

	_, err = s.RunOnce(context.Background(), "missing")
	assert.ErrorContains(t, err, "account missing: not found")
}

func TestScheduler_BudgetExceededIsReported(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	runner := runnerFunc(func(ctx context.Context, a *model.MailAccount) *ingest.CycleReport {
		<-ctx.Done()
		return &ingest.CycleReport{AccountID: a.ID, Err: ctx.Err()}
	})
	s := New(&fakeAccounts{accounts: []model.MailAccount{{ID: "a", Enabled: true}}}, runner, Options{
		CycleBudget: 10 * time.Millisecond,
		Now:         clock.Now,
		Logger:      zerolog.Nop(),
	})

	reports, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.ErrorIs(t, reports[0].Err, context.DeadlineExceeded)
	assert.ErrorContains(t, reports[0].Err, "cycle budget")
}

type runnerFunc func(ctx context.Context, a *model.MailAccount) *ingest.CycleReport

func (f runnerFunc) RunAccount(ctx context.Context, a *model.MailAccount) *ingest.CycleReport {
	return f(ctx, a)
}
