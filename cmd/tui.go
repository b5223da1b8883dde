package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"posdash/internal/notify"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
	selectedStyle = lipgloss.NewStyle().Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// errCanceled is returned when the user leaves a form without submitting.
var errCanceled = errors.New("canceled")

// runProgram runs m on the terminal until it quits or ctx ends.
func runProgram(ctx context.Context, m tea.Model, opts ...tea.ProgramOption) (tea.Model, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	return tea.NewProgram(m, opts...).Run()
}

// newInput returns a text input with a steady cursor.
func newInput(placeholder string) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.Cursor.SetMode(cursor.CursorStatic)
	return in
}

// noticeLog shows the newest notices recorded by the controllers a view drives.
type noticeLog struct {
	rec  *notify.Recorder
	keep int
}

func (n noticeLog) view() string {
	notices := n.rec.Notices()
	if len(notices) > n.keep {
		notices = notices[len(notices)-n.keep:]
	}
	var b strings.Builder
	for _, notice := range notices {
		b.WriteString(renderNotice(notice))
		b.WriteString("\n")
	}
	return b.String()
}

func renderNotice(n notify.Notice) string {
	switch n.Level {
	case notify.LevelError:
		return errorStyle.Render("✗ " + n.Message)
	case notify.LevelWarning:
		return warnStyle.Render("! " + n.Message)
	default:
		return successStyle.Render("✓ " + n.Message)
	}
}

func isYes(msg tea.KeyMsg) bool {
	return strings.EqualFold(msg.String(), "y")
}

// confirmModel asks one yes/no question.
type confirmModel struct {
	question string
	answered bool
	yes      bool
}

func (m *confirmModel) Init() tea.Cmd { return nil }

func (m *confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	m.answered = true
	m.yes = isYes(key)
	return m, tea.Quit
}

func (m *confirmModel) View() string {
	if m.answered {
		return ""
	}
	return fmt.Sprintf("%s [y/N] ", m.question)
}

// askConfirm asks question on the terminal; anything but y is no.
func askConfirm(ctx context.Context, question string) (bool, error) {
	m := &confirmModel{question: question}
	if _, err := runProgram(ctx, m); err != nil {
		return false, err
	}
	return m.yes, nil
}

// formField is one labeled input of a form.
type formField struct {
	label  string
	secret bool
}

// formModel collects a few values, one input per field.
type formModel struct {
	title    string
	fields   []formField
	inputs   []textinput.Model
	focus    int
	done     bool
	canceled bool
}

func newForm(title string, fields []formField) *formModel {
	m := &formModel{title: title, fields: fields}
	for _, f := range fields {
		in := newInput(f.label)
		if f.secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		m.inputs = append(m.inputs, in)
	}
	if len(m.inputs) > 0 {
		m.inputs[0].Focus()
	}
	return m
}

func (m *formModel) Init() tea.Cmd { return nil }

func (m *formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc":
		m.canceled = true
		return m, tea.Quit
	case "enter":
		if m.focus == len(m.inputs)-1 {
			m.done = true
			return m, tea.Quit
		}
		m.move(1)
		return m, nil
	case "tab", "down":
		m.move(1)
		return m, nil
	case "shift+tab", "up":
		m.move(-1)
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *formModel) move(delta int) {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	m.inputs[m.focus].Focus()
}

func (m *formModel) View() string {
	if m.done || m.canceled {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title) + "\n\n")
	for i, in := range m.inputs {
		fmt.Fprintf(&b, "  %s\n  %s\n\n", m.fields[i].label, in.View())
	}
	b.WriteString(helpStyle.Render("  tab next field · enter confirm · esc cancel"))
	return b.String()
}

// values returns the input values in field order. Secrets are kept as typed.
func (m *formModel) values() []string {
	out := make([]string, len(m.inputs))
	for i, in := range m.inputs {
		out[i] = in.Value()
		if !m.fields[i].secret {
			out[i] = strings.TrimSpace(out[i])
		}
	}
	return out
}

// askFields runs a form for fields and returns the values in order.
func askFields(ctx context.Context, title string, fields []formField) ([]string, error) {
	m := newForm(title, fields)
	if _, err := runProgram(ctx, m); err != nil {
		return nil, err
	}
	if m.canceled {
		return nil, errCanceled
	}
	return m.values(), nil
}
