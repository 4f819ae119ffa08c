package ui

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/Iron-Ham/subforge/internal/errors"
)

// IsTerminal reports whether f is an interactive terminal. Anything that is
// not an *os.File (buffers in tests, pipes wrapped by cobra) is not.
func IsTerminal(f any) bool {
	file, ok := f.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// confirmModel is a yes/no prompt. Enter accepts the highlighted answer,
// y/n answer directly, arrows and tab toggle, ctrl+c and esc abort.
type confirmModel struct {
	title   string
	value   bool
	done    bool
	aborted bool
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		case "enter":
			m.done = true
			return m, tea.Quit
		case "y", "Y":
			m.value = true
			m.done = true
			return m, tea.Quit
		case "n", "N":
			m.value = false
			m.done = true
			return m, tea.Quit
		case "left", "right", "tab", "h", "l":
			m.value = !m.value
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	yes := " Yes "
	no := " No "
	if m.value {
		yes = Selected.Render(yes)
	} else {
		no = Selected.Render(no)
	}
	return fmt.Sprintf("%s %s / %s\n", Title.Render(m.title), yes, no)
}

// Prompter asks yes/no questions on a terminal.
type Prompter struct {
	in  io.Reader
	out io.Writer
}

// NewPrompter creates a Prompter reading keys from in and drawing on out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

// Interactive reports whether both ends are terminals.
func (p *Prompter) Interactive() bool {
	return IsTerminal(p.in) && IsTerminal(p.out)
}

// Confirm asks title and returns the answer. The highlighted default is
// "No". Aborting with ctrl+c or esc returns errors.ErrAborted.
func (p *Prompter) Confirm(ctx context.Context, title string) (bool, error) {
	prog := tea.NewProgram(confirmModel{title: title},
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	result, err := prog.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, err
	}
	m := result.(confirmModel)
	if m.aborted {
		return false, errors.ErrAborted
	}
	return m.value, nil
}
