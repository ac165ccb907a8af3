package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/leadmail/internal/ingest"
	"github.com/nhle/leadmail/internal/keys"
	"github.com/nhle/leadmail/internal/model"
	appsync "github.com/nhle/leadmail/internal/sync"
	"github.com/nhle/leadmail/internal/theme"
	"github.com/nhle/leadmail/internal/ui"
	"github.com/nhle/leadmail/internal/ui/accountlist"
	"github.com/nhle/leadmail/internal/ui/command"
	"github.com/nhle/leadmail/internal/ui/report"
)

// statusRefreshInterval is how often account states are re-read while
// the dashboard is open.
const statusRefreshInterval = time.Second

// Scheduler is the part of the polling scheduler the dashboard drives.
type Scheduler interface {
	Statuses() []appsync.AccountStatus
	Trigger()
	RunOnce(ctx context.Context, accountIDs ...string) ([]*ingest.CycleReport, error)
	WaitForReport() tea.Cmd
}

// Notifications reads and acknowledges notifications.
type Notifications interface {
	GetUnreadNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// ViewState represents the active view of the dashboard.
type ViewState int

const (
	ViewAccounts ViewState = iota
	ViewReport
	ViewNotifications
	ViewHelp
	ViewCommand
)

type (
	statusTickMsg struct{}

	notificationsMsg struct {
		items []model.Notification
		err   error
	}

	pollDoneMsg struct {
		account string
		err     error
	}

	// flashMsg sets a transient status bar message.
	flashMsg string
)

// Model is the root Bubble Tea model of the dashboard. It shows the
// polling state of every account, cycle reports and notifications.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	scheduler     Scheduler
	notifications Notifications

	accounts    accountlist.Model
	report      report.Model
	commandView command.Model
	helpView    help.Model
	inbox       inbox

	statuses []appsync.AccountStatus
	flash    string
	ready    bool
}

// New creates the dashboard model.
func New(s Scheduler, n Notifications) Model {
	k := keys.DefaultKeyMap()
	h := help.New()
	h.ShowAll = true

	return Model{
		currentView:   ViewAccounts,
		keys:          k,
		scheduler:     s,
		notifications: n,
		accounts:      accountlist.New(k, 80, 24),
		report:        report.New(k, 80, 24),
		commandView:   command.New(80, 24),
		helpView:      h,
		inbox:         newInbox(k),
	}
}

// Init starts listening for reports and loads the initial state.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.scheduler.WaitForReport(),
		m.loadNotifications(),
		func() tea.Msg { return statusTickMsg{} },
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.accounts.SetSize(w, h)
		m.report.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.helpView.Width = w
		return m, nil

	case statusTickMsg:
		cmd := m.refreshStatuses()
		tick := tea.Tick(statusRefreshInterval, func(time.Time) tea.Msg { return statusTickMsg{} })
		return m, tea.Batch(cmd, tick)

	case appsync.ReportMsg:
		cmd := m.refreshStatuses()
		if cur := m.report.Report(); m.currentView == ViewReport && cur != nil && cur.AccountID == msg.Report.AccountID {
			m.report.SetReport(msg.Report)
		}
		return m, tea.Batch(cmd, m.scheduler.WaitForReport(), m.loadNotifications())

	case notificationsMsg:
		if msg.err != nil {
			m.flash = "loading notifications: " + msg.err.Error()
			return m, nil
		}
		m.inbox.setItems(msg.items)
		return m, nil

	case pollDoneMsg:
		if msg.err != nil {
			m.flash = fmt.Sprintf("polling %s: %v", msg.account, msg.err)
		}
		return m, nil

	case flashMsg:
		m.flash = string(msg)
		return m, nil

	case accountlist.SelectedAccountMsg:
		m.report.SetReport(msg.Status.LastReport)
		m.switchTo(ViewReport)
		return m, nil

	case accountlist.PollAccountMsg:
		return m, m.pollAccount(msg.AccountID)

	case report.BackMsg:
		m.currentView = ViewAccounts
		return m, nil

	case markReadMsg:
		return m, m.markRead(msg.ids...)

	case command.CommandMsg:
		m.currentView = m.previousView
		if msg.Err != nil {
			m.flash = msg.Err.Error()
			return m, nil
		}
		return m, m.executeCommand(msg.Command)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewCommand {
			if key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}
			break
		}

		m.flash = ""
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.switchTo(ViewHelp)
			return m, nil

		case key.Matches(msg, m.keys.Command):
			m.switchTo(ViewCommand)
			return m, m.commandView.Focus()

		case key.Matches(msg, m.keys.Refresh):
			m.scheduler.Trigger()
			m.flash = "polling all accounts"
			return m, nil

		case key.Matches(msg, m.keys.Notifications):
			if m.currentView == ViewNotifications {
				m.currentView = ViewAccounts
				return m, nil
			}
			m.switchTo(ViewNotifications)
			return m, m.loadNotifications()

		case key.Matches(msg, m.keys.Back) && (m.currentView == ViewHelp || m.currentView == ViewNotifications):
			m.currentView = ViewAccounts
			return m, nil
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewAccounts:
		m.accounts, cmd = m.accounts.Update(msg)
	case ViewReport:
		m.report, cmd = m.report.Update(msg)
	case ViewNotifications:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	bar := ui.StatusBar{Hints: m.keyHints(), Flash: m.flash}
	return m.layout.Render(m.header(), m.renderContent(), bar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewAccounts:
		return m.accounts.View()
	case ViewReport:
		return m.report.View()
	case ViewNotifications:
		return m.inbox.View()
	case ViewHelp:
		return theme.PanelStyle.Render(m.helpView.View(m.keys))
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// header summarizes the account states for the top bar.
func (m Model) header() ui.Header {
	h := ui.Header{
		Title:    "leadmail",
		Unread:   m.inbox.len(),
		Accounts: len(m.statuses),
	}
	for _, s := range m.statuses {
		switch s.State {
		case appsync.SyncRunning:
			h.Polling++
		case appsync.SyncError:
			h.Failing = append(h.Failing, s.AccountName)
		}
	}
	return h
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewReport:
		return "esc back | j/k scroll"
	case ViewNotifications:
		return "x mark read | esc back"
	default:
		return "q quit | ? help | r poll all | p poll selected | n notifications | : command"
	}
}

func (m *Model) switchTo(v ViewState) {
	m.previousView = m.currentView
	m.currentView = v
}

func (m *Model) refreshStatuses() tea.Cmd {
	m.statuses = m.scheduler.Statuses()
	return m.accounts.SetStatuses(m.statuses)
}

// loadNotifications returns a command that reads unread notifications.
func (m Model) loadNotifications() tea.Cmd {
	n := m.notifications
	return func() tea.Msg {
		items, err := n.GetUnreadNotifications(context.Background())
		return notificationsMsg{items: items, err: err}
	}
}

// markRead returns a command that acknowledges notifications and reloads
// the unread list.
func (m Model) markRead(ids ...string) tea.Cmd {
	n := m.notifications
	return func() tea.Msg {
		ctx := context.Background()
		for _, id := range ids {
			if err := n.MarkNotificationRead(ctx, id); err != nil {
				return notificationsMsg{err: err}
			}
		}
		items, err := n.GetUnreadNotifications(ctx)
		return notificationsMsg{items: items, err: err}
	}
}

// pollAccount runs one cycle of an account outside the schedule. The
// report arrives through WaitForReport like any other.
func (m Model) pollAccount(accountID string) tea.Cmd {
	s := m.scheduler
	return tea.Batch(
		func() tea.Msg { return flashMsg("polling " + accountID) },
		func() tea.Msg {
			_, err := s.RunOnce(context.Background(), accountID)
			return pollDoneMsg{account: accountID, err: err}
		},
	)
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(cmd command.Command) tea.Cmd {
	switch cmd.Name {
	case command.Refresh:
		m.scheduler.Trigger()
		m.flash = "polling all accounts"
		return nil
	case command.Poll:
		name := cmd.Args[0]
		for _, st := range m.statuses {
			if strings.EqualFold(st.AccountName, name) || st.AccountID == name {
				return m.pollAccount(st.AccountID)
			}
		}
		m.flash = fmt.Sprintf("no account named %q", name)
		return nil
	case command.Read:
		return m.markRead(m.inbox.ids()...)
	case command.Help:
		m.switchTo(ViewHelp)
		return nil
	case command.Quit:
		return tea.Quit
	default:
		return nil
	}
}
