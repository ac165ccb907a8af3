package report

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/leadmail/internal/ingest"
	"github.com/nhle/leadmail/internal/keys"
	"github.com/nhle/leadmail/internal/theme"
)

// BackMsg signals the parent to navigate back to the account list.
type BackMsg struct{}

// Model is the scrollable cycle report view.
type Model struct {
	report   *ingest.CycleReport
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new report view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// SetReport replaces the shown report and scrolls to the top.
func (m *Model) SetReport(r *ingest.CycleReport) {
	m.report = r
	m.viewport.SetContent(Render(r))
	m.viewport.GotoTop()
}

// Report returns the report being shown.
func (m Model) Report() *ingest.CycleReport {
	return m.report
}

// Update handles messages for the report view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg { return BackMsg{} }
	}

	// j/k, pgup/pgdn scroll the viewport.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the report view.
func (m Model) View() string {
	if m.report == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No cycle has run for this account yet")
	}
	return m.viewport.View()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}
