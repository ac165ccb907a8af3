package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/leadmail/internal/keys"
	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/theme"
)

// markReadMsg asks the root model to acknowledge notifications.
type markReadMsg struct {
	ids []string
}

// inbox lists unread notifications, newest first.
type inbox struct {
	items  []model.Notification
	cursor int
	keys   *keys.KeyMap
}

func newInbox(k *keys.KeyMap) inbox {
	return inbox{keys: k}
}

func (b *inbox) setItems(items []model.Notification) {
	b.items = items
	if b.cursor >= len(items) {
		b.cursor = max(len(items)-1, 0)
	}
}

func (b inbox) len() int { return len(b.items) }

func (b inbox) ids() []string {
	ids := make([]string, len(b.items))
	for i, n := range b.items {
		ids[i] = n.ID
	}
	return ids
}

func (b inbox) Update(msg tea.Msg) (inbox, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return b, nil
	}

	switch {
	case key.Matches(km, b.keys.Down):
		if b.cursor < len(b.items)-1 {
			b.cursor++
		}
	case key.Matches(km, b.keys.Up):
		if b.cursor > 0 {
			b.cursor--
		}
	case key.Matches(km, b.keys.MarkRead):
		if len(b.items) == 0 {
			return b, nil
		}
		id := b.items[b.cursor].ID
		return b, func() tea.Msg { return markReadMsg{ids: []string{id}} }
	}
	return b, nil
}

func (b inbox) View() string {
	if len(b.items) == 0 {
		return theme.DimmedStyle.Render("  No unread notifications")
	}

	lines := []string{theme.TitleStyle.Render(fmt.Sprintf("Notifications (%d)", len(b.items)))}
	for i, n := range b.items {
		kind := theme.NotificationStyle(string(n.Kind)).Render(string(n.Kind))
		when := theme.DimmedStyle.Render(n.CreatedAt.Local().Format("Jan 02 15:04"))
		line := fmt.Sprintf("%s %s %s", when, kind, n.Message)
		if i == b.cursor {
			line = theme.SelectedItemStyle.Render(line)
		} else {
			line = theme.ListItemStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
