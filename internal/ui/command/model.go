package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/leadmail/internal/theme"
)

// Command names understood by the dashboard.
const (
	Refresh = "refresh"
	Poll    = "poll"
	Read    = "read"
	Help    = "help"
	Quit    = "quit"
)

var aliases = map[string]string{
	"r":       Refresh,
	"refresh": Refresh,
	"p":       Poll,
	"poll":    Poll,
	"read":    Read,
	"h":       Help,
	"help":    Help,
	"q":       Quit,
	"quit":    Quit,
}

// Command is a parsed palette entry.
type Command struct {
	Name string
	Args []string
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Command Command
	Err     error
}

// Parse splits a palette line into a known command and its arguments.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	name, ok := aliases[strings.ToLower(fields[0])]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	cmd := Command{Name: name, Args: fields[1:]}

	if name == Poll && len(cmd.Args) != 1 {
		return Command{}, fmt.Errorf("usage: poll <account name>")
	}
	return cmd, nil
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh | poll <account> | read | help | quit"
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		line := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if line == "" {
			return m, nil
		}
		cmd, err := Parse(line)
		return m, func() tea.Msg {
			return CommandMsg{Command: cmd, Err: err}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	title := theme.TitleStyle.Render("Command Palette")
	input := m.input.View()

	content := lipgloss.JoinVertical(lipgloss.Left, title, input)

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
