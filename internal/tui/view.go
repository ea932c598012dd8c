package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-devmux/internal/discovery"
	"github.com/randomizedcoder/go-devmux/internal/logtail"
	"github.com/randomizedcoder/go-devmux/internal/orchestrator"
	"github.com/randomizedcoder/go-devmux/internal/process"
	"github.com/randomizedcoder/go-devmux/internal/stats"
)

const sidebarWidth = 34

func (m Model) render() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	switch m.tab {
	case TabProcesses:
		b.WriteString(m.renderProcesses())
	case TabLogs:
		b.WriteString(m.renderLogs())
	case TabCommands:
		b.WriteString(m.renderCommands())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	title := "go-devmux"
	if m.version != "" {
		title += " " + m.version
	}
	parts := []string{headerStyle.Render(title)}

	if m.snap != nil {
		running := m.snap.RunningCount()
		total := len(m.snap.Processes)
		style := statusOK
		if running < total {
			style = statusWarning
		}
		parts = append(parts, style.Render(fmt.Sprintf("%d/%d running", running, total)))
	}
	if m.projectDir != "" {
		parts = append(parts, mutedStyle.Render(m.projectDir))
	}
	if m.metricsAddr != "" {
		parts = append(parts, dimStyle.Render("metrics http://"+m.metricsAddr+"/metrics"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderTabs() string {
	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if Tab(i) == TabLogs && m.snap != nil && m.snap.LogWatchErr != "" {
			label += " (off)"
		}
		if Tab(i) == m.tab {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// =============================================================================
// Processes
// =============================================================================

func (m Model) renderProcesses() string {
	if m.snap == nil || len(m.snap.Processes) == 0 {
		return mutedStyle.Render("No processes configured.")
	}
	sidebar := m.renderSidebar()
	output := m.renderProcessOutput(m.snap.Processes[min(m.selected, len(m.snap.Processes)-1)])
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, output)
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	for i, p := range m.snap.Processes {
		b.WriteString(m.renderProcessRow(i, p))
		b.WriteString("\n")
	}
	return paneStyle.
		Width(sidebarWidth).
		Height(m.bodyHeight() - 2).
		Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderProcessRow(i int, p orchestrator.ProcessView) string {
	hotkey := " "
	if p.Hotkey != 0 {
		hotkey = string(p.Hotkey)
	}
	detail := p.Status.String()
	switch {
	case p.NextRestartIn > 0:
		detail = "restart " + stats.FormatUptime(p.NextRestartIn)
	case p.PID != 0:
		detail = stats.FormatUptime(p.Uptime)
	}
	name := fmt.Sprintf("[%s] %-12s", hotkey, truncate(p.DisplayName, 12))
	row := StatusStyle(p.Status).Render(StatusIcon(p.Status)) + " " + name + " " + mutedStyle.Render(detail)
	if p.ErrorLines > 0 {
		row += " " + statusError.Render(fmt.Sprintf("!%d", p.ErrorLines))
	}
	if i == m.selected {
		return selectedStyle.Render("›") + row
	}
	return " " + row
}

func (m Model) renderProcessOutput(p orchestrator.ProcessView) string {
	width := max(m.width-sidebarWidth-6, 10)
	height := m.outputHeight()

	title := subtitleStyle.Render(p.DisplayName)
	if p.PID != 0 {
		title += mutedStyle.Render(fmt.Sprintf(" (PID %d)", p.PID))
	}
	title += " " + StatusStyle(p.Status).Render(p.Status.String())
	if p.Failures > 0 {
		title += statusWarning.Render(fmt.Sprintf(" %d failures", p.Failures))
	}
	if p.ScrollOffset > 0 {
		title += dimStyle.Render(fmt.Sprintf(" [+%d]", p.ScrollOffset))
	}

	lines := visibleLines(p.Output, p.ScrollOffset, height)
	body := renderLines(lines)
	if len(lines) == 0 {
		body = dimStyle.Render(p.CommandLine)
	}
	return paneStyle.
		Width(width).
		Height(m.bodyHeight() - 2).
		Render(title + "\n" + body)
}

// visibleLines returns the window of height lines ending offset lines
// before the newest.
func visibleLines(lines []process.OutputLine, offset, height int) []process.OutputLine {
	end := max(len(lines)-offset, 0)
	start := max(end-height, 0)
	return lines[start:end]
}

func renderLines(lines []process.OutputLine) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(RenderOutputLine(l))
	}
	return b.String()
}

// =============================================================================
// Logs
// =============================================================================

func (m Model) renderLogs() string {
	if m.snap != nil && m.snap.LogWatchErr != "" {
		return statusWarning.Render("Log watching disabled: ") + mutedStyle.Render(m.snap.LogWatchErr)
	}
	header := m.renderLogFilter()
	if m.mode == inputSearch {
		header = promptStyle.Render("Search ") + m.input.View()
	}
	return paneStyle.
		Width(max(m.width-2, 10)).
		Height(m.bodyHeight() - 2).
		Render(header + "\n" + m.logView.View())
}

func (m Model) renderLogFilter() string {
	level := "all"
	if m.filter.MinLevel > logtail.LevelDebug {
		level = m.filter.MinLevel.String() + "+"
	}
	file := "all files"
	if m.filter.File != "" {
		file = m.filter.File
	}
	parts := []string{
		boldStyle.Render("Level: ") + level,
		boldStyle.Render("File: ") + file,
	}
	if m.filter.Search != "" {
		parts = append(parts, boldStyle.Render("Search: ")+m.filter.Search)
	}
	if !m.logFollow {
		parts = append(parts, dimStyle.Render("(paused)"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderLogLines() string {
	entries := m.filter.Apply(m.snap.Logs)
	if len(entries) == 0 {
		return dimStyle.Render("No log entries.")
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(RenderLogEntry(e))
	}
	return b.String()
}

// =============================================================================
// Commands
// =============================================================================

func (m Model) renderCommands() string {
	var list strings.Builder
	var category discovery.Category
	for i, t := range m.tools {
		if t.Category != category {
			category = t.Category
			list.WriteString(titleStyle.Render(strings.ToUpper(string(category))) + "\n")
		}
		label := " " + t.DisplayName
		if i == m.toolSel {
			label = selectedStyle.Render("›" + t.DisplayName)
		}
		list.WriteString(label + "\n")
	}
	if len(m.tools) == 0 {
		list.WriteString(mutedStyle.Render("No tools found."))
	}
	sidebar := paneStyle.
		Width(sidebarWidth).
		Height(m.bodyHeight() - 2).
		Render(strings.TrimRight(list.String(), "\n"))

	output := paneStyle.
		Width(max(m.width-sidebarWidth-6, 10)).
		Height(m.bodyHeight() - 2).
		Render(m.renderCommandTitle() + "\n" + m.cmdView.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, output)
}

func (m Model) renderCommandTitle() string {
	switch m.mode {
	case inputArgs:
		return promptStyle.Render(m.tools[m.toolSel].DisplayName+" ") + m.input.View()
	case inputStdin:
		return promptStyle.Render("stdin ") + m.input.View()
	}
	if m.snap == nil || m.snap.Command.Label == "" {
		return mutedStyle.Render("Select a tool and press enter.")
	}
	c := m.snap.Command
	title := subtitleStyle.Render(c.Label) + " "
	switch {
	case c.Running:
		title += statusWarning.Render("running " + stats.FormatUptime(c.Elapsed))
	case c.Cancelled:
		title += statusWarning.Render("cancelled")
	case c.Succeeded():
		title += statusOK.Render("ok " + stats.FormatMs(c.Elapsed))
	case c.ExitCode != nil:
		title += statusError.Render(fmt.Sprintf("exit %d", *c.ExitCode))
	default:
		title += statusError.Render("failed")
	}
	return title
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	status := ""
	if m.status != "" {
		status = footerStyle.Render(m.status) + "\n"
	}
	return status + m.help.View(m.keys)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
