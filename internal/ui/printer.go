package ui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/novaremote/internal/discovery"
	"github.com/muurk/novaremote/internal/neterr"
)

// Detail is one labelled line in a header or result box
type Detail struct {
	Key   string
	Value string
}

// Printer renders the non-interactive commands' output (scan, send, keys).
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = clampWidth(width, nil)
	return p
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintHeader prints the command banner
func (p *Printer) PrintHeader(command string, details ...Detail) {
	p.Println(RenderHeader(command, details, p.width))
}

// PrintSuccess prints a success box
func (p *Printer) PrintSuccess(title string, details ...Detail) {
	p.Println(RenderSuccess(title, details, p.width))
}

// PrintError prints an error box with the troubleshooting hint for err
func (p *Printer) PrintError(title string, err error) {
	p.Println(RenderError(title, err, p.width))
}

// PrintTable prints aligned key/value rows without a border
func (p *Printer) PrintTable(rows []Detail) {
	for _, r := range rows {
		p.Println(renderDetail(r))
	}
}

// RenderHeader renders the banner shown at the top of each command
func RenderHeader(command string, details []Detail, width int) string {
	title := HeaderTitleStyle.Render(AppName)
	cmd := HeaderCommandStyle.Render(command)
	content := lipgloss.JoinVertical(lipgloss.Left, title, cmd)

	if len(details) > 0 {
		dividerWidth := width - 6
		if dividerWidth < 10 {
			dividerWidth = 10
		}
		divider := lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Render(strings.Repeat("─", dividerWidth))

		lines := make([]string, 0, len(details))
		for _, d := range details {
			lines = append(lines, "  "+renderDetail(d))
		}
		content = lipgloss.JoinVertical(lipgloss.Left, content, divider, strings.Join(lines, "\n"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Render(content)
}

// RenderSuccess renders a success result box
func RenderSuccess(title string, details []Detail, width int) string {
	lines := []string{
		"",
		SuccessTitleStyle.Render(SuccessMarker + "  " + title),
		"",
	}
	for _, d := range details {
		lines = append(lines, renderDetail(d))
	}
	if len(details) > 0 {
		lines = append(lines, "")
	}

	return boxStyle(width, SuccessColor, lipgloss.DoubleBorder()).Render(strings.Join(lines, "\n"))
}

// RenderError renders a failure box: short message, then the troubleshooting hint
func RenderError(title string, err error, width int) string {
	lines := []string{
		"",
		ErrorTitleStyle.Render(FailureMarker + "  " + title),
		"",
	}
	if err != nil {
		lines = append(lines,
			ErrorMessageStyle.Render(neterr.ShortMessage(err)),
			"",
			HintStyle.Render(Hint(err)),
			"",
		)
	}

	return boxStyle(width, ErrorColor, lipgloss.DoubleBorder()).Render(strings.Join(lines, "\n"))
}

// Hint returns troubleshooting advice for a discovery or transport error
func Hint(err error) string {
	if errors.Is(err, discovery.ErrNotFound) {
		return strings.Join([]string{
			"No TV answered the SSDP search.",
			"Troubleshooting:",
			"  • Check that the TV is powered on and on the same network",
			"  • Multicast (239.255.255.250:1900) may be blocked by a firewall or the router",
			"  • Try a longer --timeout, or skip discovery with --device IP",
		}, "\n")
	}
	return neterr.TroubleshootingHint(err)
}

func renderDetail(d Detail) string {
	return DetailKeyStyle.Render(d.Key+":") + " " + DetailValueStyle.Render(d.Value)
}
