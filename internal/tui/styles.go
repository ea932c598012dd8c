// Package tui provides the terminal dashboard for the dev-process supervisor.
//
// The TUI uses Bubble Tea for the application framework, Bubbles for key
// bindings, scrolling panes and prompts, and Lipgloss for styling. It shows:
//   - Managed processes with their status and output
//   - Laravel log entries with level, file and search filters
//   - One-off tool and artisan commands
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-devmux/internal/logtail"
	"github.com/randomizedcoder/go-devmux/internal/process"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red
	colorInfo    = lipgloss.Color("#3B82F6") // Blue

	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Base Styles
// =============================================================================

var (
	baseStyle = lipgloss.NewStyle().
			Foreground(colorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	boldStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true)
)

// =============================================================================
// Layout Styles
// =============================================================================

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBorder).
			Bold(true).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBorder).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	errorLineStyle = lipgloss.NewStyle().
			Foreground(colorError)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true)
)

// =============================================================================
// Status Indicators
// =============================================================================

var (
	statusOK = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	statusWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	statusInfo = lipgloss.NewStyle().
			Foreground(colorInfo).
			Bold(true)
)

// StatusStyle returns the style for a process status.
func StatusStyle(s process.Status) lipgloss.Style {
	switch s {
	case process.StatusRunning:
		return statusOK
	case process.StatusSupervised:
		return statusInfo
	case process.StatusRestarting:
		return statusWarning
	case process.StatusFailed:
		return statusError
	default:
		return dimStyle
	}
}

// StatusIcon returns the single-glyph indicator for a process status.
func StatusIcon(s process.Status) string {
	switch s {
	case process.StatusRunning, process.StatusSupervised:
		return "●"
	case process.StatusRestarting:
		return "◐"
	case process.StatusFailed:
		return "✗"
	default:
		return "○"
	}
}

// LevelStyle returns the style for a log level.
func LevelStyle(l logtail.Level) lipgloss.Style {
	switch {
	case l.IsError():
		return statusError
	case l == logtail.LevelWarning:
		return statusWarning
	case l == logtail.LevelInfo || l == logtail.LevelNotice:
		return statusInfo
	case l == logtail.LevelDebug:
		return dimStyle
	default:
		return baseStyle
	}
}

// RenderOutputLine styles one output line.
func RenderOutputLine(l process.OutputLine) string {
	if l.IsError {
		return errorLineStyle.Render(l.Content)
	}
	return baseStyle.Render(l.Content)
}

// RenderLogEntry styles one log entry.
func RenderLogEntry(e logtail.Entry) string {
	if e.IsStackTrace {
		return dimStyle.Render("  " + e.Content)
	}
	return LevelStyle(e.Level).Render(e.Content)
}
