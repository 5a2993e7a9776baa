package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm shows a warning box with the given notes and asks a yes/no
// question on in. Anything other than "y" or "yes" (including EOF) is a no.
func (p *Printer) Confirm(in io.Reader, question string, notes ...string) bool {
	lines := []string{
		"",
		lipgloss.NewStyle().Foreground(WarningColor).Bold(true).Render("⚠  " + question),
		"",
	}
	for _, n := range notes {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render("• "+n))
	}
	if len(notes) > 0 {
		lines = append(lines, "")
	}

	p.Println(boxStyle(p.width, WarningColor, lipgloss.DoubleBorder()).Render(strings.Join(lines, "\n")))
	_, _ = fmt.Fprint(p.out, StatusBusyStyle.Bold(true).Render("Proceed? [y/N]: "))

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		p.Println("")
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	p.Println(HintStyle.Render("  Cancelled."))
	return false
}
