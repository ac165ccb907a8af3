package accountlist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/leadmail/internal/keys"
	appsync "github.com/nhle/leadmail/internal/sync"
	"github.com/nhle/leadmail/internal/theme"
)

// SelectedAccountMsg is sent when the user opens an account's last report.
type SelectedAccountMsg struct {
	Status appsync.AccountStatus
}

// PollAccountMsg asks the parent to poll one account now.
type PollAccountMsg struct {
	AccountID string
}

// Model is the account status list.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a new account list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Mail accounts"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetStatuses replaces the listed accounts, keeping the cursor in range.
func (m *Model) SetStatuses(statuses []appsync.AccountStatus) tea.Cmd {
	items := make([]list.Item, len(statuses))
	for i, st := range statuses {
		items[i] = AccountItem{Status: st}
	}
	return m.list.SetItems(items)
}

// Selected returns the status under the cursor.
func (m Model) Selected() (appsync.AccountStatus, bool) {
	item, ok := m.list.SelectedItem().(AccountItem)
	if !ok {
		return appsync.AccountStatus{}, false
	}
	return item.Status, true
}

// Update handles messages for the account list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Select):
			st, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return SelectedAccountMsg{Status: st} }

		case key.Matches(msg, m.keys.RunAccount):
			st, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return PollAccountMsg{AccountID: st.AccountID} }
		}
	}

	// Navigation keys go to the list.
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the account list.
func (m Model) View() string {
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
