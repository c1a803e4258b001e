package output

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/kensar/kiosk/internal/update"
)

const (
	defaultMarkdownWidth = 80
	minMarkdownWidth     = 20
)

// TerminalWidth returns the current terminal width or a fallback when unavailable.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultMarkdownWidth
	}
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
		return cols
	}
	return fallback
}

// IsTerminal reports whether stdin is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// RenderMarkdown renders markdown using Glamour wrapped at width columns.
// An empty style selects Glamour's auto style, which probes the terminal and
// falls back to plain text off one. Full-screen programs must pass a fixed
// style since the probe competes with them for stdin.
func RenderMarkdown(text string, width int, style string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if width < minMarkdownWidth {
		width = minMarkdownWidth
	}

	styleOpt := glamour.WithAutoStyle()
	if style != "" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	renderer, err := glamour.NewTermRenderer(
		styleOpt,
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n"), nil
}

// ReleaseNotes renders the notes of a pending release under a title line.
// Without notes only the title is returned.
func ReleaseNotes(info *update.Info, width int, style string) string {
	if info == nil {
		return ""
	}
	title := info.ReleaseName
	if title == "" {
		title = info.Version
	}
	md := "## " + title + "\n\n" + info.ReleaseNotes
	rendered, err := RenderMarkdown(md, width, style)
	if err != nil || strings.TrimSpace(info.ReleaseNotes) == "" {
		return titleStyle.Render(title)
	}
	return rendered
}
