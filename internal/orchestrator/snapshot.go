package orchestrator

import (
	"strings"
	"time"

	"github.com/randomizedcoder/go-devmux/internal/logtail"
	"github.com/randomizedcoder/go-devmux/internal/process"
	"github.com/randomizedcoder/go-devmux/internal/stats"
)

// Snapshot is an immutable view of the loop state, published on every tick.
type Snapshot struct {
	At        time.Time
	Processes []ProcessView

	Logs        []logtail.Entry
	LogFiles    []string // base names seen so far, sorted
	LogWatchErr string   // set when tailing is disabled

	Command CommandView
}

// ProcessView is the display state of one process.
type ProcessView struct {
	ID          process.ID
	Name        string
	DisplayName string
	Hotkey      rune
	Status      process.Status
	PID         int
	Uptime      time.Duration
	CommandLine string

	Output       []process.OutputLine
	ScrollOffset int

	// Failures is the consecutive crash count.
	Failures uint32

	// NextRestartIn is the time left before a scheduled restart, zero
	// when none is pending.
	NextRestartIn time.Duration

	// ErrorLines counts output lines that looked like errors.
	ErrorLines int
}

// CommandView is the display state of the ephemeral command pane.
type CommandView struct {
	RunID     string
	Label     string
	Running   bool
	Elapsed   time.Duration
	ExitCode  *int
	Cancelled bool
	Output    []process.OutputLine
}

// Finished reports whether a command ran and has exited.
func (c CommandView) Finished() bool {
	return c.Label != "" && !c.Running
}

// Succeeded reports whether the last command exited with code 0.
func (c CommandView) Succeeded() bool {
	return c.ExitCode != nil && *c.ExitCode == 0
}

// Process returns the view of id.
func (s *Snapshot) Process(id process.ID) (ProcessView, bool) {
	for _, p := range s.Processes {
		if p.ID == id {
			return p, true
		}
	}
	return ProcessView{}, false
}

// IDs returns the process ids in display order.
func (s *Snapshot) IDs() []process.ID {
	ids := make([]process.ID, len(s.Processes))
	for i, p := range s.Processes {
		ids[i] = p.ID
	}
	return ids
}

// RunningCount returns the number of processes with a live instance.
func (s *Snapshot) RunningCount() int {
	n := 0
	for _, p := range s.Processes {
		if p.Status == process.StatusRunning || p.Status == process.StatusSupervised {
			n++
		}
	}
	return n
}

// publish builds and stores a new snapshot. Output slices are rebuilt only
// for processes that changed since the last publish.
func (o *Orchestrator) publish() {
	now := time.Now()
	snap := &Snapshot{
		At:          now,
		Processes:   make([]ProcessView, 0, len(o.order)),
		Logs:        o.logs.Items(),
		LogFiles:    sortedKeys(o.logFiles),
		LogWatchErr: o.logErr,
		Command: CommandView{
			RunID:     o.cmd.runID,
			Label:     o.cmd.label,
			Running:   o.cmd.running,
			ExitCode:  o.cmd.exitCode,
			Cancelled: o.cmd.cancelled,
			Output:    o.cmd.output.Items(),
		},
	}
	if o.cmd.running {
		snap.Command.Elapsed = now.Sub(o.cmd.startedAt)
	} else {
		snap.Command.Elapsed = o.cmd.duration
	}

	for _, id := range o.order {
		p := o.procs[id]
		out, ok := o.outputs[id]
		if !ok {
			out = p.Output.Items()
			o.outputs[id] = out
		}
		hotkey, _ := o.registry.Hotkey(id)
		view := ProcessView{
			ID:           id,
			Name:         id.Name(),
			DisplayName:  o.registry.DisplayName(id),
			Hotkey:       hotkey,
			Status:       p.Status,
			PID:          p.PID,
			Uptime:       p.Uptime(now),
			CommandLine:  p.Config.CommandLine(),
			Output:       out,
			ScrollOffset: p.ScrollOffset,
			Failures:     o.sup.RestartState(id).ConsecutiveFailures,
			ErrorLines:   o.mirror.ErrorCount(id),
		}
		if pr, ok := o.pending[id]; ok {
			view.NextRestartIn = max(pr.due.Sub(now), 0)
		}
		snap.Processes = append(snap.Processes, view)
	}
	o.snapshot.Store(snap)
}

// =============================================================================
// Log filtering
// =============================================================================

// LogFilter selects log entries for display. The zero value passes all.
type LogFilter struct {
	MinLevel logtail.Level
	File     string // base name; empty for all files
	Search   string // case-insensitive substring
}

// Active reports whether the filter hides anything.
func (f LogFilter) Active() bool {
	return f.MinLevel > logtail.LevelDebug || f.File != "" || f.Search != ""
}

// Match reports whether e passes the filter.
func (f LogFilter) Match(e logtail.Entry) bool {
	if !e.Level.Passes(f.MinLevel) {
		return false
	}
	if f.File != "" && e.File != f.File {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Content), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// Apply returns the entries passing the filter, in order.
func (f LogFilter) Apply(entries []logtail.Entry) []logtail.Entry {
	if !f.Active() {
		return entries
	}
	out := make([]logtail.Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// Exit summary
// =============================================================================

// SummaryTailLines is the number of output lines shown per failed process.
const SummaryTailLines = 5

// Summary formats the exit summary. Call it after Run has returned.
func (o *Orchestrator) Summary(metricsAddr string) string {
	sum := o.stats.Summary()
	tail := make(map[string][]string)
	for _, ps := range sum.Processes {
		if !endedFailed(ps) {
			continue
		}
		for _, id := range o.order {
			if id.Name() != ps.Name {
				continue
			}
			if lines := o.mirror.RecentLines(id, SummaryTailLines); len(lines) > 0 {
				tail[ps.Name] = lines
			}
		}
	}
	return stats.FormatExitSummary(sum, stats.SummaryConfig{
		ProjectDir:  o.cfg.ProjectDir,
		MetricsAddr: metricsAddr,
		Tail:        tail,
	})
}

// endedFailed reports whether the last instance exited non-zero or the
// process never started at all.
func endedFailed(ps stats.ProcessStats) bool {
	if ps.Spawns == 0 {
		return ps.SpawnFailures > 0
	}
	return ps.LastExitCode != nil && *ps.LastExitCode != 0
}
