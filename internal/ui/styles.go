// Package ui holds terminal presentation: status styles for command output
// and the interactive yes/no prompt.
package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors meet WCAG AA contrast on dark backgrounds.
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray

	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Selected = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	// Remediation lines are indented under the message they belong to.
	Command = lipgloss.NewStyle().
		Foreground(MutedColor).
		PaddingLeft(4)
)

// Status markers.
const (
	MarkOK   = "✓"
	MarkWarn = "!"
	MarkFail = "✗"
	MarkInfo = "•"
)

// Printer writes styled status lines. Styles are dropped when the output is
// not a terminal so logs and pipes stay plain.
type Printer struct {
	out   io.Writer
	plain bool
}

// NewPrinter creates a Printer for out. Color is used only when out is a
// terminal.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, plain: !IsTerminal(out)}
}

// NewPlainPrinter creates a Printer that never styles output.
func NewPlainPrinter(out io.Writer) *Printer {
	return &Printer{out: out, plain: true}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.out }

func (p *Printer) render(style lipgloss.Style, s string) string {
	if p.plain {
		return s
	}
	return style.Render(s)
}

// Success prints a completed step.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.render(Secondary, MarkOK), fmt.Sprintf(format, args...))
}

// Info prints a neutral line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.render(Muted, MarkInfo), fmt.Sprintf(format, args...))
}

// Warn prints a recoverable problem.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.render(Warning, MarkWarn), fmt.Sprintf(format, args...))
}

// Fail prints a failed step.
func (p *Printer) Fail(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.render(Error, MarkFail), fmt.Sprintf(format, args...))
}

// Heading prints a bold section title.
func (p *Printer) Heading(s string) {
	fmt.Fprintln(p.out, p.render(Title, s))
}

// Remediation prints commands the user can run to finish by hand.
func (p *Printer) Remediation(lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(p.out, p.render(Muted, "  To finish manually:"))
	for _, line := range lines {
		if p.plain {
			fmt.Fprintln(p.out, "    "+line)
			continue
		}
		fmt.Fprintln(p.out, Command.Render(line))
	}
}
