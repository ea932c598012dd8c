package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-devmux/internal/orchestrator"
	"github.com/randomizedcoder/go-devmux/internal/process"
)

// =============================================================================
// Tests: View
// =============================================================================

func TestView_Processes(t *testing.T) {
	m, ctl := newTestModel()
	ctl.snap.Processes[0].Output = []process.OutputLine{
		process.StdoutLine("Server running on [http://127.0.0.1:8000]"),
	}
	ctl.snap.Processes[0].Uptime = 75 * time.Second
	ctl.snap.Processes[2].ErrorLines = 3
	next, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 30})
	m = next.(Model)

	view := m.View()
	for _, want := range []string{
		"go-devmux",
		"1/3 running",
		"/app",
		"[s] Server",
		"[w] Worker",
		"1m15s",
		"!3",
		"PID 100",
		"127.0.0.1:8000",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestView_NoProcesses(t *testing.T) {
	ctl := &fakeController{snap: &orchestrator.Snapshot{}}
	m := New(Config{Controller: ctl})
	if !strings.Contains(m.View(), "No processes configured") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestView_PendingRestart(t *testing.T) {
	m, ctl := newTestModel()
	ctl.snap.Processes[2].Status = process.StatusRestarting
	ctl.snap.Processes[2].NextRestartIn = 4 * time.Second
	ctl.snap.Processes[2].Failures = 2

	view := press(t, m, runes("w")).View()
	if !strings.Contains(view, "restart 4s") {
		t.Errorf("view missing restart countdown:\n%s", view)
	}
}

func TestView_Logs(t *testing.T) {
	m, _ := newTestModel()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = press(t, next.(Model), runes("2"), runes("f"), runes("f"))

	view := m.View()
	if !strings.Contains(view, "warning+") {
		t.Errorf("filter header missing:\n%s", view)
	}
	if strings.Contains(view, "hello") {
		t.Errorf("info entry should be filtered:\n%s", view)
	}
	if !strings.Contains(view, "boom") || !strings.Contains(view, "slow") {
		t.Errorf("warning/error entries missing:\n%s", view)
	}
}

func TestView_LogWatchDisabled(t *testing.T) {
	m, ctl := newTestModel()
	ctl.snap.LogWatchErr = "log watcher initialization failed"
	view := press(t, m, runes("2")).View()
	if !strings.Contains(view, "Log watching disabled") || !strings.Contains(view, "(off)") {
		t.Errorf("view:\n%s", view)
	}
}

func TestView_Commands(t *testing.T) {
	code := 1
	m, ctl := newTestModel()
	ctl.snap.Command = orchestrator.CommandView{
		Label:    "Pint",
		ExitCode: &code,
		Output:   []process.OutputLine{process.StdoutLine("FAIL app/Models/User.php")},
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 30})
	next, _ = next.(Model).Update(TickMsg{})
	view := press(t, next.(Model), runes("3")).View()

	for _, want := range []string{"QUALITY", "ARTISAN", "Pint", "exit 1", "User.php"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestView_HelpToggle(t *testing.T) {
	m, _ := newTestModel()
	short := m.View()
	full := press(t, m, runes("?")).View()
	if !strings.Contains(full, "processes") || len(full) <= len(short) {
		t.Errorf("full help not shown:\n%s", full)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Server", 12, "Server"},
		{"Scheduler Worker", 8, "Schedul…"},
		{"ab", 1, "a"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
