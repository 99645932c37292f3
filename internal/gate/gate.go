// Package gate implements the terminal input of an interactive session: the
// questions asked before a run and the key press that separates one run
// from the next.
package gate

import (
	"context"
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Choice is the operator's answer at the gate.
type Choice int

const (
	// ChoiceKeep restarts without touching earlier output.
	ChoiceKeep Choice = iota
	// ChoiceClear clears the screen before restarting.
	ChoiceClear
	// ChoiceQuit ends the session.
	ChoiceQuit
)

func (c Choice) String() string {
	switch c {
	case ChoiceClear:
		return "clear"
	case ChoiceQuit:
		return "quit"
	default:
		return "keep"
	}
}

const promptText = "press Spacebar to clean output, or Enter to continue without clean output:"

var promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#BCBCBC"))

// Model waits for Space, Enter or an interrupt and ignores every other key.
type Model struct {
	choice  Choice
	decided bool
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(inputClosedMsg); ok {
		return m, tea.Quit
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok || m.decided {
		return m, nil
	}
	switch {
	case key.Type == tea.KeySpace || key.String() == " ":
		m.choice = ChoiceClear
	case key.Type == tea.KeyEnter || key.Type == tea.KeyCtrlJ:
		m.choice = ChoiceKeep
	case key.Type == tea.KeyCtrlC || key.Type == tea.KeyEsc || key.String() == "q":
		m.choice = ChoiceQuit
	default:
		return m, nil
	}
	m.decided = true
	return m, tea.Quit
}

func (m Model) View() string {
	if m.decided {
		return ""
	}
	return promptStyle.Render(promptText) + "\n"
}

// Choice returns the decision, and false while none has been made.
func (m Model) Choice() (Choice, bool) {
	return m.choice, m.decided
}

// ErrNoChoice is returned when input ends before a key was chosen.
var ErrNoChoice = errors.New("gate: input closed before a choice was made")

// Wait shows the prompt on out and blocks until the operator presses a
// recognised key on in, input ends, or ctx is done.
func Wait(ctx context.Context, in io.Reader, out io.Writer) (Choice, error) {
	final, err := run(ctx, Model{}, in, out)
	if err != nil {
		return ChoiceQuit, err
	}
	m, ok := final.(Model)
	if !ok {
		return ChoiceQuit, ErrNoChoice
	}
	choice, decided := m.Choice()
	if !decided {
		return ChoiceQuit, ErrNoChoice
	}
	return choice, nil
}
