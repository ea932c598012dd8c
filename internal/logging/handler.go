package logging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/randomizedcoder/go-devmux/internal/process"
	"github.com/randomizedcoder/go-devmux/internal/ring"
)

const (
	// MaxLineLength is the longest line mirrored before truncation.
	MaxLineLength = 4096

	// MaxRecentLines is how many lines are kept per process for the exit summary.
	MaxRecentLines = 20
)

// OutputMirror copies managed process output into the diagnostic log and
// keeps the last few lines of each process for the exit summary.
type OutputMirror struct {
	logger  *slog.Logger
	verbose bool

	mu     sync.Mutex
	recent map[process.ID]*ring.Buffer[string]
	errors map[process.ID]int
}

// NewOutputMirror creates a mirror. Without verbose only error lines are logged.
func NewOutputMirror(logger *slog.Logger, verbose bool) *OutputMirror {
	if logger == nil {
		logger = Discard()
	}
	return &OutputMirror{
		logger:  logger,
		verbose: verbose,
		recent:  make(map[process.ID]*ring.Buffer[string]),
		errors:  make(map[process.ID]int),
	}
}

// HandleLine records one line of output from id.
func (m *OutputMirror) HandleLine(id process.ID, line string, isStderr bool) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}
	out := process.NewOutputLine(line, isStderr)

	m.mu.Lock()
	buf, ok := m.recent[id]
	if !ok {
		buf = ring.New[string](MaxRecentLines)
		m.recent[id] = buf
	}
	buf.Push(line)
	if out.IsError {
		m.errors[id]++
	}
	m.mu.Unlock()

	level := classify(out)
	if !m.verbose && level == slog.LevelDebug {
		return
	}
	m.logger.Log(context.Background(), level, "process_output",
		"process", id.Name(),
		"stderr", isStderr,
		"line", line,
	)
}

// classify maps an output line to a log level.
func classify(line process.OutputLine) slog.Level {
	if line.IsError {
		return slog.LevelWarn
	}
	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines from id, oldest first.
func (m *OutputMirror) RecentLines(id process.ID, n int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.recent[id]
	if !ok {
		return nil
	}
	return buf.Last(n)
}

// ErrorCount returns how many error lines id has produced.
func (m *OutputMirror) ErrorCount(id process.ID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[id]
}

// Forget drops state for id.
func (m *OutputMirror) Forget(id process.ID) {
	m.mu.Lock()
	delete(m.recent, id)
	delete(m.errors, id)
	m.mu.Unlock()
}
