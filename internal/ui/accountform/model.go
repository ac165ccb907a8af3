package accountform

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/leadmail/internal/address"
	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/theme"
)

// AccountSubmittedMsg is dispatched when the form completes.
type AccountSubmittedMsg struct {
	Account model.MailAccount
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	name         string
	server       string
	port         string
	useTLS       bool
	username     string
	password     string
	aiKey        string
	fromFilter   string
	pollInterval string
}

// Model is the Bubble Tea model for adding or editing a mail account.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	editMode bool
	editID   string
	width    int
	height   int
}

// New creates a new account form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{port: "993", useTLS: true},
		width:  width,
		height: height,
	}
}

// StartCreate initializes the form for a new account.
func (m *Model) StartCreate() tea.Cmd {
	m.editMode = false
	m.editID = ""
	*m.fb = formBindings{port: "993", useTLS: true}
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form with an existing account. Leaving the
// password empty keeps the stored one.
func (m *Model) StartEdit(a model.MailAccount) tea.Cmd {
	m.editMode = true
	m.editID = a.ID
	*m.fb = formBindings{
		name:       a.Name,
		server:     a.MailServer,
		port:       strconv.Itoa(a.MailPort),
		useTLS:     a.UseTLS,
		username:   a.Username,
		fromFilter: a.FromFilter,
	}
	if a.PollIntervalSec > 0 {
		m.fb.pollInterval = strconv.Itoa(a.PollIntervalSec)
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Form returns the underlying huh form, for running it standalone.
func (m *Model) Form() *huh.Form {
	if m.form == nil {
		m.form = m.buildForm()
	}
	return m.form
}

// Update handles messages for the account form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		account, err := m.Account()
		if err != nil {
			return m, nil
		}
		return m, func() tea.Msg { return AccountSubmittedMsg{Account: account} }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the account form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Mail Account"
	if m.editMode {
		titleText = "Edit Mail Account"
	}

	content := theme.TitleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Account builds the account from the current field values.
func (m Model) Account() (model.MailAccount, error) {
	port, err := strconv.Atoi(strings.TrimSpace(m.fb.port))
	if err != nil {
		return model.MailAccount{}, fmt.Errorf("invalid port %q", m.fb.port)
	}

	interval := 0
	if s := strings.TrimSpace(m.fb.pollInterval); s != "" {
		interval, err = strconv.Atoi(s)
		if err != nil {
			return model.MailAccount{}, fmt.Errorf("invalid poll interval %q", s)
		}
	}

	return model.MailAccount{
		ID:              m.editID,
		Name:            strings.TrimSpace(m.fb.name),
		MailServer:      strings.TrimSpace(m.fb.server),
		MailPort:        port,
		UseTLS:          m.fb.useTLS,
		Username:        strings.TrimSpace(m.fb.username),
		Password:        m.fb.password,
		AIAPIKey:        strings.TrimSpace(m.fb.aiKey),
		FromFilter:      strings.ToLower(strings.TrimSpace(m.fb.fromFilter)),
		PollIntervalSec: interval,
		Enabled:         true,
	}, nil
}

func (m *Model) buildForm() *huh.Form {
	passwordField := huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&m.fb.password)
	if m.editMode {
		passwordField = passwordField.Description("Leave empty to keep the stored password")
	} else {
		passwordField = passwordField.Validate(validateRequired("Password"))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("Sales inbox").
				Value(&m.fb.name).
				Validate(validateRequired("Name")),
			huh.NewInput().
				Title("IMAP Server").
				Placeholder("imap.example.com").
				Value(&m.fb.server).
				Validate(validateHost),
			huh.NewInput().
				Title("Port").
				Value(&m.fb.port).
				Validate(validatePort),
			huh.NewConfirm().
				Title("Implicit TLS").
				Description("No upgrades the connection with STARTTLS").
				Value(&m.fb.useTLS),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&m.fb.username).
				Validate(validateRequired("Username")),
			passwordField,
			huh.NewInput().
				Title("AI API Key").
				Placeholder("optional, falls back to the global key").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.aiKey),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("From Filter").
				Placeholder("only fetch mail from this sender (optional)").
				Value(&m.fb.fromFilter).
				Validate(validateOptionalAddress),
			huh.NewInput().
				Title("Poll Interval").
				Placeholder("seconds (optional)").
				Value(&m.fb.pollInterval).
				Validate(validateOptionalInterval),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateHost(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("IMAP server is required")
	}
	if strings.ContainsAny(s, " /:") {
		return fmt.Errorf("enter a host name without scheme or port")
	}
	return nil
}

func validatePort(s string) error {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

func validateOptionalAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !address.IsValid(s) {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

func validateOptionalInterval(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 60 {
		return fmt.Errorf("poll interval must be at least 60 seconds")
	}
	return nil
}
