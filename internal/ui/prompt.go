package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/kxapi/internal/login"
)

const (
	fieldUsername = iota
	fieldPassword
	fieldCount
)

// loginModel is the Bubble Tea model behind TerminalPrompter.
type loginModel struct {
	inputs  [fieldCount]textinput.Model
	focus   int
	keys    keyMap
	styles  Styles
	req     login.PromptRequest
	warning string

	creds     login.Credentials
	submitted bool
	cancelled bool
}

func newLoginModel(req login.PromptRequest, styles Styles) loginModel {
	user := textinput.New()
	user.Prompt = ""
	user.Placeholder = "username"
	user.CharLimit = 100
	user.Focus()

	pass := textinput.New()
	pass.Prompt = ""
	pass.Placeholder = "password"
	pass.CharLimit = 200
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	return loginModel{
		inputs: [fieldCount]textinput.Model{user, pass},
		keys:   defaultKeyMap(),
		styles: styles,
		req:    req,
	}
}

func (m loginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m loginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.cancelled = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Next):
			cmd := m.setFocus((m.focus + 1) % fieldCount)
			return m, cmd
		case key.Matches(msg, m.keys.Prev):
			cmd := m.setFocus((m.focus + fieldCount - 1) % fieldCount)
			return m, cmd
		case key.Matches(msg, m.keys.Submit):
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m loginModel) submit() (tea.Model, tea.Cmd) {
	username := strings.TrimSpace(m.inputs[fieldUsername].Value())
	password := m.inputs[fieldPassword].Value()
	switch {
	case username == "":
		m.warning = "Enter your KerbalX username"
		cmd := m.setFocus(fieldUsername)
		return m, cmd
	case password == "":
		m.warning = ""
		cmd := m.setFocus(fieldPassword)
		return m, cmd
	}
	m.creds = login.Credentials{Username: username, Password: password}
	m.submitted = true
	return m, tea.Quit
}

// setFocus must be called on the copy that Update returns.
func (m *loginModel) setFocus(i int) tea.Cmd {
	m.focus = i
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == i {
			cmd = m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	return cmd
}

func (m loginModel) View() string {
	if m.submitted {
		return m.styles.MutedText.Render("Logging in....") + "\n"
	}
	s := m.styles
	rows := []string{s.AccentText.Render("KerbalX.com Login"), ""}
	if m.req.Failed {
		msg := m.req.Message
		if msg == "" {
			msg = "Login failed"
		}
		rows = append(rows, s.DangerText.Render(msg),
			s.MutedText.Render("Forgot your password? Go to https://kerbalx.com/users/password/new to reset it."), "")
	}
	labels := [fieldCount]string{"username", "password"}
	for i, in := range m.inputs {
		box := s.Box
		if i == m.focus {
			box = s.FocusBox
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Center,
			s.Text.Width(10).Render(labels[i]), box.Width(32).Render(in.View())))
	}
	if m.warning != "" {
		rows = append(rows, s.WarningText.Render(m.warning))
	}
	rows = append(rows, "", m.keys.helpLine(s))
	return lipgloss.JoinVertical(lipgloss.Left, rows...) + "\n"
}

// TerminalPrompter asks for KerbalX credentials with a Bubble Tea form.
// Nil In and Out use the process terminal.
type TerminalPrompter struct {
	In    io.Reader
	Out   io.Writer
	Theme string
}

var _ login.Prompter = TerminalPrompter{}

// Prompt runs the form until the user submits or cancels.
func (p TerminalPrompter) Prompt(ctx context.Context, req login.PromptRequest) (login.Credentials, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}
	final, err := tea.NewProgram(newLoginModel(req, GetTheme(p.Theme).Styles()), opts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, tea.ErrProgramKilled) {
			return login.Credentials{}, ctxErr
		}
		return login.Credentials{}, fmt.Errorf("run login prompt: %w", err)
	}
	m, ok := final.(loginModel)
	if !ok || m.cancelled || !m.submitted {
		return login.Credentials{}, login.ErrPromptCancelled
	}
	return m.creds, nil
}
