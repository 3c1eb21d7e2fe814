// Package ui renders the CLI's human-readable output and prompts.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/todo-stack/devops/internal/runner"
)

// Console prints status lines and asks questions.
type Console struct {
	Out io.Writer
	In  io.Reader

	// Interactive reports whether In is a terminal a person can answer.
	Interactive func() bool
}

// New returns a Console on the process's stdio.
func New() *Console {
	return &Console{
		Out: color.Output,
		In:  os.Stdin,
		Interactive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

var (
	info    = color.New(color.FgCyan)
	success = color.New(color.FgGreen)
	strong  = color.New(color.FgGreen, color.Bold)
	failure = color.New(color.FgRed, color.Bold)
	warning = color.New(color.FgYellow)
)

func (c *Console) line(col *color.Color, format string, args ...any) {
	col.Fprintf(c.Out, format+"\n", args...)
}

// Info prints a cyan progress line
func (c *Console) Info(format string, args ...any) { c.line(info, format, args...) }

// Success prints a green ✓ line
func (c *Console) Success(format string, args ...any) { c.line(success, "✓ "+format, args...) }

// Done prints a bold green line
func (c *Console) Done(format string, args ...any) { c.line(strong, format, args...) }

// Warn prints a yellow ⚠ line
func (c *Console) Warn(format string, args ...any) { c.line(warning, "⚠ "+format, args...) }

// Alert prints a bold red line without the error prefix
func (c *Console) Alert(format string, args ...any) { c.line(failure, format, args...) }

// Plain prints an uncolored line
func (c *Console) Plain(format string, args ...any) { fmt.Fprintf(c.Out, format+"\n", args...) }

// Error prints a bold red ✗ line followed by any process details and hints
// carried by err.
func (c *Console) Error(err error) {
	c.line(failure, "✗ Error: %s", err.Error())
	if details := runner.Details(err); details != "" {
		c.Plain("Details: %s", details)
	}
	for _, hint := range errors.GetAllHints(err) {
		c.Plain("%s", hint)
	}
}

// Rule prints a titled separator.
func (c *Console) Rule(title string) {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	bar := strings.Repeat("─", 20)
	fmt.Fprintln(c.Out, style.Render(bar+" "+title+" "+bar))
}

// Panel prints body inside a rounded green box.
func (c *Console) Panel(title, body string) {
	heading := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")).Render(title)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("2")).
		Padding(1, 2).
		Render(heading + "\n\n" + body)
	fmt.Fprintln(c.Out, box)
}

// Busy announces a long-running step with a single status line. Nothing
// animates while the step runs; the step's own output follows the line.
func (c *Console) Busy(label string) {
	c.line(info, "→ %s", label)
}

// Confirm asks a yes/no question; anything but y/yes is a no. It refuses to
// prompt when there is no terminal to answer.
func (c *Console) Confirm(prompt string) (bool, error) {
	if c.Interactive != nil && !c.Interactive() {
		return false, errors.WithHint(
			errors.New("confirmation required but stdin is not a terminal"),
			"Re-run with --yes to confirm non-interactively.")
	}

	fmt.Fprintf(c.Out, "%s [y/N]: ", prompt)
	answer, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, errors.Wrap(err, "failed to read confirmation")
	}
	yes, _ := NormalizeYesNo(answer)
	return yes, nil
}

// NormalizeYesNo reports whether input is an affirmative answer and whether
// it was recognised at all.
func NormalizeYesNo(input string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	}
	return false, false
}
