// Package output provides styled terminal output helpers (success, error,
// warning, config and update formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/kensar/kiosk/internal/journal"
	"github.com/kensar/kiosk/internal/store"
	"github.com/kensar/kiosk/internal/update"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	phaseStyles  = map[update.Phase]lipgloss.Style{
		update.PhaseIdle:        lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		update.PhaseChecking:    lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		update.PhaseAvailable:   lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		update.PhaseNone:        lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		update.PhaseDownloading: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		update.PhaseDownloaded:  lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		update.PhaseRestarting:  lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		update.PhaseError:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// maskedKeys are never printed in clear.
var maskedKeys = map[string]bool{store.KeyAdminPinHash: true}

// Success prints a success message
func Success(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...any) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// JSON outputs data as JSON
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeAdminRequired = "admin_required"
	ErrCodeStorageError  = "storage_error"
	ErrCodeNotRunning    = "not_running"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// FormatPhase formats an update phase with color
func FormatPhase(p update.Phase) string {
	style, ok := phaseStyles[p]
	if !ok {
		return string(p)
	}
	return style.Render(fmt.Sprintf("[%s]", p))
}

// PhaseBadge returns a phase indicator with symbol, e.g. "↓ downloading".
func PhaseBadge(p update.Phase) string {
	symbols := map[update.Phase]string{
		update.PhaseIdle:        "○",
		update.PhaseChecking:    "…",
		update.PhaseAvailable:   "◎",
		update.PhaseNone:        "✓",
		update.PhaseDownloading: "↓",
		update.PhaseDownloaded:  "▶",
		update.PhaseRestarting:  "⟳",
		update.PhaseError:       "✗",
	}
	symbol, ok := symbols[p]
	if !ok {
		symbol = "?"
	}
	if style, ok := phaseStyles[p]; ok {
		return style.Render(fmt.Sprintf("%s %s", symbol, p))
	}
	return fmt.Sprintf("%s %s", symbol, p)
}

// FormatSnapshot renders an update snapshot as one or two lines.
func FormatSnapshot(s update.Snapshot) string {
	var sb strings.Builder
	sb.WriteString(PhaseBadge(s.Status))
	if s.Info != nil && s.Info.Version != "" {
		sb.WriteString("  " + titleStyle.Render(s.Info.Version))
	}
	if s.Progress != nil {
		sb.WriteString(fmt.Sprintf("  %.0f%%", s.Progress.Percent))
	}
	if s.CountdownSeconds > 0 {
		sb.WriteString(subtleStyle.Render(fmt.Sprintf("  restarting in %ds", s.CountdownSeconds)))
	}
	if s.Message != "" {
		sb.WriteString("\n  " + errorStyle.Render(s.Message))
	}
	return sb.String()
}

// FormatZoom formats a zoom factor as a percentage.
func FormatZoom(f float64) string {
	return fmt.Sprintf("%.0f%%", f*100)
}

// FormatDocument renders a config document as sorted key/value lines.
// Secrets are masked.
func FormatDocument(doc store.Document) string {
	if doc == nil {
		return subtleStyle.Render("(not configured)")
	}
	keys := make([]string, 0, len(doc))
	width := 0
	for k := range doc {
		keys = append(keys, k)
		width = max(width, len(k))
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprint(doc[k])
		if maskedKeys[k] && v != "" {
			v = "********"
		}
		lines = append(lines, fmt.Sprintf("%s  %s", keyStyle.Render(fmt.Sprintf("%-*s", width, k)), v))
	}
	return strings.Join(lines, "\n")
}

// FormatEntry formats a journal entry on one line, truncating the detail to
// fit width columns (0 means no limit).
func FormatEntry(e journal.Entry, width int) string {
	prefix := fmt.Sprintf("%s  %-20s ", subtleStyle.Render(e.Time.Local().Format("2006-01-02 15:04:05")), e.Kind)
	line := prefix + e.Detail
	if width > 0 {
		line = ansi.Truncate(line, width, "…")
	}
	return line
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nSTATION:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}
