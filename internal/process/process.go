package process

import (
	"time"

	"github.com/randomizedcoder/go-devmux/internal/ring"
)

// Process is the display record of a managed process. It is owned by the
// reconciliation loop and must not be shared across goroutines.
type Process struct {
	ID     ID
	Config Config
	Status Status

	// PID of the live instance, zero when none.
	PID int

	// StartedAt is when the live instance was spawned.
	StartedAt time.Time

	// ScrollOffset counts lines up from the newest output line.
	ScrollOffset int

	Output *ring.Buffer[OutputLine]
}

// New returns a stopped process record for cfg.
func New(cfg Config) *Process {
	return &Process{
		ID:     cfg.ID,
		Config: cfg,
		Status: StatusStopped,
		Output: ring.New[OutputLine](MaxOutputLines),
	}
}

// AddOutput appends a line, evicting the oldest past MaxOutputLines.
// A scrolled-back view keeps its position relative to the content it shows.
func (p *Process) AddOutput(line OutputLine) {
	p.Output.Push(line)
	if p.ScrollOffset > 0 {
		p.ScrollOffset = min(p.ScrollOffset+1, p.Output.Len()-1)
	}
}

// ClearOutput drops all buffered output and resets the scroll position.
func (p *Process) ClearOutput() {
	p.Output.Clear()
	p.ScrollOffset = 0
}

// Scroll moves the view by delta lines; positive scrolls toward older output.
func (p *Process) Scroll(delta int) {
	maxOffset := max(p.Output.Len()-1, 0)
	p.ScrollOffset = min(max(p.ScrollOffset+delta, 0), maxOffset)
}

// Uptime returns how long the live instance has been running.
func (p *Process) Uptime(now time.Time) time.Duration {
	if p.PID == 0 || p.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(p.StartedAt)
}
