package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/leadmail/internal/ingest"
	"github.com/nhle/leadmail/internal/model"
)

// SyncState represents the current state of an account's polling.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// AccountStatus holds the polling state of one mail account.
type AccountStatus struct {
	AccountID   string
	AccountName string
	State       SyncState
	LastRun     time.Time
	LastReport  *ingest.CycleReport
	Error       error

	// scheduled is the fire time of the last cycle, used for per-account
	// intervals.
	scheduled time.Time
}

// ReportMsg is a tea.Msg carrying a finished cycle report.
type ReportMsg struct {
	Report *ingest.CycleReport
}

// ErrAlreadyRunning is returned by Start on a running scheduler.
var ErrAlreadyRunning = errors.New("scheduler already running")

// AccountLister returns the accounts to poll. store.Store satisfies it.
type AccountLister interface {
	ListAccounts(ctx context.Context, enabledOnly bool) ([]model.MailAccount, error)
}

// Runner runs one account cycle. *ingest.Pipeline satisfies it.
type Runner interface {
	RunAccount(ctx context.Context, account *model.MailAccount) *ingest.CycleReport
}

// Ticker is the part of time.Ticker the scheduler uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the TickerFunc backed by time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

// Options configures a Scheduler.
type Options struct {
	// Interval is how often the scheduler fires. Accounts with a longer
	// poll_interval_sec are skipped until due; shorter overrides are
	// rounded up to Interval.
	Interval time.Duration

	// CycleBudget bounds each account's cycle. Zero means no bound.
	CycleBudget time.Duration

	Now       func() time.Time
	NewTicker TickerFunc
	Logger    zerolog.Logger
}

// defaultInterval is used when Options.Interval is unset.
const defaultInterval = 5 * time.Minute

// Scheduler fires the pipeline for every enabled account on a fixed
// interval. Within one fire, accounts run sequentially; a cycle for an
// account is never started while its previous one is still running.
type Scheduler struct {
	accounts AccountLister
	runner   Runner
	opts     Options
	logger   zerolog.Logger

	reportCh  chan *ingest.CycleReport
	triggerCh chan struct{}

	mu       gosync.Mutex
	statuses map[string]*AccountStatus
	locks    map[string]*gosync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a Scheduler.
func New(accounts AccountLister, runner Runner, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTimeTicker
	}
	return &Scheduler{
		accounts:  accounts,
		runner:    runner,
		opts:      opts,
		logger:    opts.Logger.With().Str("component", "scheduler").Logger(),
		reportCh:  make(chan *ingest.CycleReport, 16),
		triggerCh: make(chan struct{}, 1),
		statuses:  make(map[string]*AccountStatus),
		locks:     make(map[string]*gosync.Mutex),
	}
}

// Start launches the polling loop. The first cycle runs immediately.
// The loop ends on Stop or when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.logger.Info().Dur("interval", s.opts.Interval).Msg("scheduler started")
	return nil
}

// Stop halts the loop and waits for the cycle in progress to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info().Msg("scheduler stopped")
}

// Trigger asks the running loop for an immediate cycle of every account,
// due or not. Triggers while one is pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// RunOnce runs one cycle for the given accounts, or every enabled
// account when none are given, and returns the reports. Accounts whose
// previous cycle is still running are skipped.
func (s *Scheduler) RunOnce(ctx context.Context, accountIDs ...string) ([]*ingest.CycleReport, error) {
	accounts, err := s.accounts.ListAccounts(ctx, len(accountIDs) == 0)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	if len(accountIDs) > 0 {
		wanted := make(map[string]bool, len(accountIDs))
		for _, id := range accountIDs {
			wanted[id] = true
		}
		filtered := accounts[:0]
		for _, a := range accounts {
			if wanted[a.ID] {
				filtered = append(filtered, a)
				delete(wanted, a.ID)
			}
		}
		for id := range wanted {
			return nil, fmt.Errorf("account %s: not found", id)
		}
		accounts = filtered
	}

	fired := s.opts.Now()
	var reports []*ingest.CycleReport
	for i := range accounts {
		if ctx.Err() != nil {
			break
		}
		if r := s.runAccount(ctx, &accounts[i], fired); r != nil {
			reports = append(reports, r)
		}
	}
	return reports, nil
}

// Statuses returns the status of every account seen so far, by name.
func (s *Scheduler) Statuses() []AccountStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]AccountStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		statuses = append(statuses, *st)
	}
	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].AccountName != statuses[j].AccountName {
			return statuses[i].AccountName < statuses[j].AccountName
		}
		return statuses[i].AccountID < statuses[j].AccountID
	})
	return statuses
}

// Reports delivers finished cycle reports. Reports are dropped when
// nobody reads them.
func (s *Scheduler) Reports() <-chan *ingest.CycleReport {
	return s.reportCh
}

// WaitForReport returns a tea.Cmd that waits for the next cycle report.
// Call it again after handling each ReportMsg to keep listening.
func (s *Scheduler) WaitForReport() tea.Cmd {
	return func() tea.Msg {
		r, ok := <-s.reportCh
		if !ok {
			return nil
		}
		return ReportMsg{Report: r}
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := s.opts.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.fire(ctx, false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.fire(ctx, false)
		case <-s.triggerCh:
			s.fire(ctx, true)
		}
	}
}

// fire runs every enabled account that is due, or all of them when
// force is set.
func (s *Scheduler) fire(ctx context.Context, force bool) {
	accounts, err := s.accounts.ListAccounts(ctx, true)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing accounts")
		return
	}

	fired := s.opts.Now()
	for i := range accounts {
		if ctx.Err() != nil {
			return
		}
		a := &accounts[i]
		if !force && !s.due(a, fired) {
			continue
		}
		s.runAccount(ctx, a, fired)
	}
}

func (s *Scheduler) due(a *model.MailAccount, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[a.ID]
	if !ok || st.scheduled.IsZero() {
		return true
	}
	return now.Sub(st.scheduled) >= a.PollInterval(s.opts.Interval)
}

// runAccount runs one cycle under the account's lock. It returns nil
// when the account was skipped.
func (s *Scheduler) runAccount(ctx context.Context, a *model.MailAccount, fired time.Time) *ingest.CycleReport {
	lock := s.accountLock(a.ID)
	if !lock.TryLock() {
		s.logger.Warn().Str("account", a.ID).Msg("previous cycle still running, skipping")
		return nil
	}
	defer lock.Unlock()

	s.update(a, func(st *AccountStatus) {
		st.State = SyncRunning
		st.scheduled = fired
	})

	cctx := ctx
	if s.opts.CycleBudget > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.opts.CycleBudget)
		defer cancel()
	}

	report := s.runner.RunAccount(cctx, a)
	if errors.Is(report.Err, context.DeadlineExceeded) && ctx.Err() == nil {
		report.Err = fmt.Errorf("cycle budget of %s exceeded: %w", s.opts.CycleBudget, report.Err)
	}

	s.update(a, func(st *AccountStatus) {
		st.LastRun = report.Started
		st.LastReport = report
		st.Error = report.Err
		st.State = SyncIdle
		if report.Err != nil {
			st.State = SyncError
		}
	})

	select {
	case s.reportCh <- report:
	default:
		// Drop if channel is full to avoid blocking the scheduler
	}
	return report
}

func (s *Scheduler) update(a *model.MailAccount, fn func(*AccountStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[a.ID]
	if !ok {
		st = &AccountStatus{AccountID: a.ID}
		s.statuses[a.ID] = st
	}
	st.AccountName = a.Name
	fn(st)
}

func (s *Scheduler) accountLock(id string) *gosync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &gosync.Mutex{}
		s.locks[id] = l
	}
	return l
}
