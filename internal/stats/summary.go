package stats

import (
	"fmt"
	"strings"
	"time"
)

const (
	rule    = "═══════════════════════════════════════════════════════════════════════════════\n"
	subRule = "───────────────────────────────────────────────────────────────────────────────\n"
)

// SummaryConfig holds extra context for the exit summary.
type SummaryConfig struct {
	// ProjectDir is the supervised project.
	ProjectDir string

	// MetricsAddr is the Prometheus endpoint address, if enabled.
	MetricsAddr string

	// Tail holds the last output lines of processes that ended failed,
	// keyed by process name.
	Tail map[string][]string
}

// FormatExitSummary formats the run statistics for display at exit.
func FormatExitSummary(s Summary, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("                            go-devmux Exit Summary\n")
	b.WriteString(rule + "\n")

	if cfg.ProjectDir != "" {
		fmt.Fprintf(&b, "Project:                %s\n", cfg.ProjectDir)
	}
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(s.Duration))
	fmt.Fprintf(&b, "Processes:              %d\n", len(s.Processes))
	fmt.Fprintf(&b, "Total Starts:           %d\n", s.TotalSpawns)
	fmt.Fprintf(&b, "Total Restarts:         %d\n\n", s.TotalRestarts)

	if len(s.Processes) > 0 {
		section(&b, "Processes")
		fmt.Fprintf(&b, "  %-16s %8s %9s %8s %12s  %s\n", "Process", "Starts", "Restarts", "Failed", "Uptime", "Exit Codes")
		b.WriteString("  " + strings.Repeat("─", 72) + "\n")
		for _, ps := range s.Processes {
			fmt.Fprintf(&b, "  %-16s %8d %9d %8d %12s  %s\n",
				truncate(ps.Name, 16),
				ps.Spawns,
				ps.Restarts,
				ps.SpawnFailures,
				FormatDuration(ps.TotalUptime),
				formatExitCodes(ps),
			)
		}
		b.WriteString("\n")
	}

	if s.UptimeP50 > 0 || s.UptimeP95 > 0 {
		section(&b, "Uptime Distribution")
		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatDuration(s.UptimeP50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatDuration(s.UptimeP95))
		fmt.Fprintf(&b, "  P99:                  %s\n\n", FormatDuration(s.UptimeP99))
	}

	if s.Commands > 0 {
		section(&b, "Commands")
		fmt.Fprintf(&b, "  Commands Run:         %d\n", s.Commands)
		fmt.Fprintf(&b, "  P50 Duration:         %s\n", FormatMs(s.CommandP50))
		fmt.Fprintf(&b, "  P95 Duration:         %s\n\n", FormatMs(s.CommandP95))
	}

	if len(cfg.Tail) > 0 {
		section(&b, "Last Output of Failed Processes")
		for _, ps := range s.Processes {
			lines, ok := cfg.Tail[ps.Name]
			if !ok || len(lines) == 0 {
				continue
			}
			fmt.Fprintf(&b, "  [%s]\n", ps.Name)
			for _, l := range lines {
				fmt.Fprintf(&b, "    %s\n", l)
			}
			b.WriteString("\n")
		}
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}
	b.WriteString(rule)
	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString(subRule)
	pad := max((79-len(title))/2, 0)
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(subRule + "\n")
}

func formatExitCodes(ps ProcessStats) string {
	var parts []string
	for _, code := range ps.SortedExitCodes() {
		parts = append(parts, fmt.Sprintf("%d%s×%d", code, exitCodeLabel(code), ps.ExitCodes[code]))
	}
	if ps.Signalled > 0 {
		parts = append(parts, fmt.Sprintf("signal×%d", ps.Signalled))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

// exitCodeLabel returns a short label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 127:
		return "(not found)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatUptime formats a duration compactly for status lines: 45s, 3m12s, 2h05m.
func FormatUptime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
