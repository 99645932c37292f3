package gate

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const answerLimit = 32

// Question is one line of input asked before a run.
type Question struct {
	Prompt      string
	Placeholder string
}

// Form asks its questions one after another on a single text input.
type Form struct {
	questions []Question
	input     textinput.Model
	answers   []string
	aborted   bool
}

func NewForm(questions []Question) Form {
	in := textinput.New()
	in.Prompt = "> "
	in.CharLimit = answerLimit
	in.Focus()
	if len(questions) > 0 {
		in.Placeholder = questions[0].Placeholder
	}
	return Form{questions: questions, input: in}
}

func (f Form) done() bool {
	return f.aborted || len(f.answers) == len(f.questions)
}

func (f Form) Init() tea.Cmd {
	if f.done() {
		return tea.Quit
	}
	return textinput.Blink
}

func (f Form) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if f.done() {
		return f, nil
	}
	switch msg := msg.(type) {
	case inputClosedMsg:
		f.aborted = true
		return f, tea.Quit
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			f.aborted = true
			return f, tea.Quit
		case tea.KeyEnter, tea.KeyCtrlJ:
			f.answers = append(f.answers, strings.TrimSpace(f.input.Value()))
			f.input.Reset()
			if f.done() {
				return f, tea.Quit
			}
			f.input.Placeholder = f.questions[len(f.answers)].Placeholder
			return f, nil
		}
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

func (f Form) View() string {
	if f.done() {
		return ""
	}
	q := f.questions[len(f.answers)]
	return promptStyle.Render(q.Prompt) + "\n" + f.input.View() + "\n"
}

// Answers returns what has been entered so far, and whether every
// question got an answer.
func (f Form) Answers() ([]string, bool) {
	out := make([]string, len(f.answers))
	copy(out, f.answers)
	return out, !f.aborted && len(f.answers) == len(f.questions)
}

// ErrNoAnswer is returned when input ends or the operator backs out
// before every question was answered.
var ErrNoAnswer = errors.New("gate: input closed before every question was answered")

// Ask shows each question on out and collects one trimmed line per
// question from in. Answers are returned in question order.
func Ask(ctx context.Context, in io.Reader, out io.Writer, questions []Question) ([]string, error) {
	final, err := run(ctx, NewForm(questions), in, out)
	if err != nil {
		return nil, err
	}
	f, ok := final.(Form)
	if !ok {
		return nil, ErrNoAnswer
	}
	answers, complete := f.Answers()
	if !complete {
		return answers, ErrNoAnswer
	}
	return answers, nil
}
