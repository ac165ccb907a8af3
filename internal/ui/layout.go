package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/leadmail/internal/theme"
)

// Header is the polling summary shown in the top bar.
type Header struct {
	Title  string
	Unread int

	Accounts int
	Polling  int
	Failing  []string
}

// Label is the title with the unread notification count.
func (h Header) Label() string {
	if h.Unread > 0 {
		return fmt.Sprintf("%s [%d new]", h.Title, h.Unread)
	}
	return h.Title
}

// Status describes the combined polling state. A running cycle wins over
// failures from earlier cycles.
func (h Header) Status() string {
	switch {
	case h.Accounts == 0:
		return "no accounts"
	case h.Polling > 0:
		return fmt.Sprintf("polling (%d)", h.Polling)
	case len(h.Failing) > 0:
		return "failing: " + strings.Join(h.Failing, ", ")
	default:
		return "idle"
	}
}

func (h Header) state() string {
	switch {
	case h.Accounts == 0:
		return ""
	case h.Polling > 0:
		return "running"
	case len(h.Failing) > 0:
		return "error"
	default:
		return "idle"
	}
}

// StatusBar is the bottom bar. A flash message replaces the hints until
// it is cleared.
type StatusBar struct {
	Hints string
	Flash string
}

// Layout splits the terminal into header, content and status bar.
type Layout struct {
	Width  int
	Height int
}

// NewLayout creates a Layout for the given terminal size.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight is the height left between the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-2, 0)
}

// RenderHeader renders the title on the left and the polling state on
// the right, colored by state.
func (l Layout) RenderHeader(h Header) string {
	title := theme.HeaderStyle.Render(h.Label())

	status := theme.StateStyle(h.state()).
		Background(theme.HeaderStyle.GetBackground()).
		Render(h.Status())

	return lipgloss.JoinHorizontal(lipgloss.Top, title, l.fill(theme.HeaderStyle, title, status), status)
}

// RenderStatusBar renders the flash message or the key hints.
func (l Layout) RenderStatusBar(bar StatusBar) string {
	var rendered string
	if bar.Flash != "" {
		rendered = theme.StatusBarStyle.Bold(true).Render(bar.Flash)
	} else {
		rendered = theme.StatusBarStyle.Render(bar.Hints)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, l.fill(theme.StatusBarStyle, rendered))
}

// Render composes the full dashboard frame.
func (l Layout) Render(h Header, content string, bar StatusBar) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		l.RenderHeader(h),
		content,
		l.RenderStatusBar(bar),
	)
}

// fill pads a bar to the terminal width with the style's background.
func (l Layout) fill(style lipgloss.Style, parts ...string) string {
	gap := l.Width
	for _, p := range parts {
		gap -= lipgloss.Width(p)
	}
	if gap <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
}
