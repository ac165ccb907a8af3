package accountlist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	appsync "github.com/nhle/leadmail/internal/sync"
	"github.com/nhle/leadmail/internal/theme"
)

// AccountItem wraps an account's polling status so it can be used in a
// bubbles/list.
type AccountItem struct {
	Status appsync.AccountStatus
}

// FilterValue returns the string used for fuzzy filtering.
func (i AccountItem) FilterValue() string { return i.Status.AccountName }

// Title returns the account name for the list.
func (i AccountItem) Title() string { return i.Status.AccountName }

// Description returns a short summary of the last cycle.
func (i AccountItem) Description() string {
	return summary(i.Status, time.Now())
}

// ItemDelegate implements list.ItemDelegate for rendering account rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single account line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ai, ok := item.(AccountItem)
	if !ok {
		return
	}
	st := ai.Status

	state := st.State.String()
	stateBadge := theme.StateStyle(state).Render(fmt.Sprintf("%-7s", state))

	detail := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(summary(st, time.Now()))

	line := fmt.Sprintf("%s %s  %s", stateBadge, st.AccountName, detail)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// summary describes the last cycle of an account in one line.
func summary(st appsync.AccountStatus, now time.Time) string {
	if st.LastRun.IsZero() {
		return "never polled"
	}

	when := relativeTime(st.LastRun, now)
	if st.Error != nil {
		return fmt.Sprintf("%s: %v", when, st.Error)
	}

	r := st.LastReport
	if r == nil {
		return when
	}
	s := fmt.Sprintf("%s: %d stored, %d skipped", when, r.Stored(), r.Skipped())
	if n := r.Failed(); n > 0 {
		s += fmt.Sprintf(", %d failed", n)
	}
	if n := r.LeadsCreated(); n > 0 {
		s += fmt.Sprintf(", %d new leads", n)
	}
	return s
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	default:
		return t.Local().Format("Jan 02 15:04")
	}
}
