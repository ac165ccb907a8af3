package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/leadmail/internal/ingest"
	"github.com/nhle/leadmail/internal/model"
	appsync "github.com/nhle/leadmail/internal/sync"
	"github.com/nhle/leadmail/internal/ui/command"
)

type fakeScheduler struct {
	statuses  []appsync.AccountStatus
	triggered int
	polled    []string
	pollErr   error
}

func (f *fakeScheduler) Statuses() []appsync.AccountStatus { return f.statuses }
func (f *fakeScheduler) Trigger()                          { f.triggered++ }

func (f *fakeScheduler) RunOnce(_ context.Context, ids ...string) ([]*ingest.CycleReport, error) {
	f.polled = append(f.polled, ids...)
	return nil, f.pollErr
}

func (f *fakeScheduler) WaitForReport() tea.Cmd { return nil }

type fakeNotifications struct {
	unread []model.Notification
	read   []string
}

func (f *fakeNotifications) GetUnreadNotifications(context.Context) ([]model.Notification, error) {
	return f.unread, nil
}

func (f *fakeNotifications) MarkNotificationRead(_ context.Context, id string) error {
	f.read = append(f.read, id)
	var kept []model.Notification
	for _, n := range f.unread {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	f.unread = kept
	return nil
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send applies msg and resolves the returned command when it yields a
// single message the model handles itself.
func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func newTestModel(t *testing.T) (Model, *fakeScheduler, *fakeNotifications) {
	t.Helper()
	report := &ingest.CycleReport{
		AccountID:   "acc-1",
		AccountName: "Sales",
		Started:     time.Now().Add(-time.Minute),
		Finished:    time.Now(),
		Results:     []ingest.Result{{MessageID: "a@example.com", Outcome: ingest.OutcomeStored}},
	}
	s := &fakeScheduler{statuses: []appsync.AccountStatus{
		{AccountID: "acc-1", AccountName: "Sales", State: appsync.SyncIdle, LastRun: report.Started, LastReport: report},
		{AccountID: "acc-2", AccountName: "Support", State: appsync.SyncError, Error: errors.New("authentication failed")},
	}}
	n := &fakeNotifications{unread: []model.Notification{
		{ID: "n1", Kind: model.NotificationNewLead, Message: "New lead: Taro"},
		{ID: "n2", Kind: model.NotificationAuthError, Message: "Support: authentication failed"},
	}}

	m := New(s, n)
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	m, _ = send(t, m, statusTickMsg{})
	m, _ = send(t, m, m.loadNotifications()())
	return m, s, n
}

func TestModel_View(t *testing.T) {
	m, _, _ := newTestModel(t)

	out := m.View()
	assert.Contains(t, out, "leadmail [2 new]")
	assert.Contains(t, out, "failing: Support")
	assert.Contains(t, out, "Sales")
}

func TestModel_RefreshTriggersScheduler(t *testing.T) {
	m, s, _ := newTestModel(t)

	m, _ = send(t, m, keyMsg("r"))
	assert.Equal(t, 1, s.triggered)
	assert.Contains(t, m.View(), "polling all accounts")
}

func TestModel_SelectShowsLastReport(t *testing.T) {
	m, _, _ := newTestModel(t)

	m, cmd := send(t, m, keyMsg("enter"))
	require.NotNil(t, cmd)
	m, _ = send(t, m, cmd())
	assert.Equal(t, ViewReport, m.currentView)
	assert.Contains(t, m.View(), "a@example.com")

	m, cmd = send(t, m, keyMsg("esc"))
	require.NotNil(t, cmd)
	m, _ = send(t, m, cmd())
	assert.Equal(t, ViewAccounts, m.currentView)
}

func TestModel_PollCommand(t *testing.T) {
	m, s, _ := newTestModel(t)

	m, _ = send(t, m, command.CommandMsg{Command: command.Command{Name: command.Poll, Args: []string{"support"}}})
	cmd := m.pollAccount("acc-2")
	require.NotNil(t, cmd)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		m, _ = send(t, m, c())
	}
	assert.Equal(t, []string{"acc-2"}, s.polled)
	assert.Contains(t, m.View(), "polling acc-2")

	m, _ = send(t, m, command.CommandMsg{Command: command.Command{Name: command.Poll, Args: []string{"nobody"}}})
	assert.Contains(t, m.View(), `no account named "nobody"`)
}

func TestModel_PollFailureIsShown(t *testing.T) {
	m, s, _ := newTestModel(t)
	s.pollErr = errors.New("account acc-9: not found")

	m, _ = send(t, m, pollDoneMsg{account: "acc-9", err: s.pollErr})
	assert.Contains(t, m.View(), "polling acc-9: account acc-9: not found")
}

func TestModel_Notifications(t *testing.T) {
	m, _, n := newTestModel(t)

	m, _ = send(t, m, keyMsg("n"))
	assert.Equal(t, ViewNotifications, m.currentView)
	assert.Contains(t, m.View(), "New lead: Taro")

	m, cmd := send(t, m, keyMsg("x"))
	require.NotNil(t, cmd)
	m, cmd = send(t, m, cmd())
	require.NotNil(t, cmd)
	m, _ = send(t, m, cmd())

	assert.Equal(t, []string{"n1"}, n.read)
	assert.Contains(t, m.View(), "leadmail [1 new]")

	m, cmd = send(t, m, command.CommandMsg{Command: command.Command{Name: command.Read}})
	require.NotNil(t, cmd)
	m, _ = send(t, m, cmd())
	assert.Equal(t, []string{"n1", "n2"}, n.read)
	assert.NotContains(t, m.View(), "new]")
}

func TestModel_CommandPaletteErrors(t *testing.T) {
	m, _, _ := newTestModel(t)

	m, _ = send(t, m, keyMsg(":"))
	assert.Equal(t, ViewCommand, m.currentView)

	m, _ = send(t, m, command.CommandMsg{Err: errors.New(`unknown command "x"`)})
	assert.Equal(t, ViewAccounts, m.currentView)
	assert.Contains(t, m.View(), `unknown command "x"`)
}

func TestModel_Quit(t *testing.T) {
	m, _, _ := newTestModel(t)

	_, cmd := send(t, m, keyMsg("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
