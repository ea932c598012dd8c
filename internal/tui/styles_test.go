package tui

import (
	"strings"
	"testing"

	"github.com/randomizedcoder/go-devmux/internal/logtail"
	"github.com/randomizedcoder/go-devmux/internal/process"
)

// =============================================================================
// Tests: StatusIcon / StatusStyle
// =============================================================================

func TestStatusIcon(t *testing.T) {
	tests := []struct {
		status process.Status
		want   string
	}{
		{process.StatusRunning, "●"},
		{process.StatusSupervised, "●"},
		{process.StatusRestarting, "◐"},
		{process.StatusFailed, "✗"},
		{process.StatusStopped, "○"},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := StatusIcon(tt.status); got != tt.want {
				t.Errorf("StatusIcon(%v) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestStatusStyle_DistinctForFailures(t *testing.T) {
	if StatusStyle(process.StatusFailed).GetForeground() != colorError {
		t.Error("failed should use the error color")
	}
	if StatusStyle(process.StatusRunning).GetForeground() != colorSuccess {
		t.Error("running should use the success color")
	}
	if StatusStyle(process.StatusRestarting).GetForeground() != colorWarning {
		t.Error("restarting should use the warning color")
	}
}

func TestLevelStyle(t *testing.T) {
	tests := []struct {
		level logtail.Level
		want  any
	}{
		{logtail.LevelEmergency, colorError},
		{logtail.LevelError, colorError},
		{logtail.LevelWarning, colorWarning},
		{logtail.LevelInfo, colorInfo},
		{logtail.LevelNotice, colorInfo},
		{logtail.LevelDebug, colorTextDim},
		{logtail.LevelUnknown, colorText},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := LevelStyle(tt.level).GetForeground(); got != tt.want {
				t.Errorf("LevelStyle(%v) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: Render helpers
// =============================================================================

func TestRenderOutputLine(t *testing.T) {
	got := RenderOutputLine(process.StdoutLine("listening on :8000"))
	if !strings.Contains(got, "listening on :8000") {
		t.Errorf("RenderOutputLine() = %q", got)
	}
}

func TestRenderLogEntry_StackTraceIndented(t *testing.T) {
	e := logtail.NewEntry("/l/laravel.log", "#0 /app/vendor/foo.php(12): bar()")
	got := RenderLogEntry(e)
	if !strings.Contains(got, "  #0") {
		t.Errorf("stack frame not indented: %q", got)
	}
}
