// Package stats tracks process lifecycle statistics for the exit summary.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// ProcessStats is the lifecycle record of one process.
type ProcessStats struct {
	Name          string
	Spawns        int
	SpawnFailures int
	Restarts      int
	Exits         int
	Signalled     int
	ExitCodes     map[int]int
	TotalUptime   time.Duration
	LastExitCode  *int
}

// Tracker accumulates lifecycle statistics. It is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	start time.Time
	now   func() time.Time

	procs map[string]*ProcessStats
	order []string

	// ~100 centroids each.
	uptimeDigest  *tdigest.TDigest
	commandDigest *tdigest.TDigest
	commands      int
}

// NewTracker creates a tracker whose run starts now.
func NewTracker() *Tracker {
	return newTracker(time.Now)
}

func newTracker(now func() time.Time) *Tracker {
	return &Tracker{
		start:         now(),
		now:           now,
		procs:         make(map[string]*ProcessStats),
		uptimeDigest:  tdigest.NewWithCompression(100),
		commandDigest: tdigest.NewWithCompression(100),
	}
}

func (t *Tracker) get(name string) *ProcessStats {
	ps, ok := t.procs[name]
	if !ok {
		ps = &ProcessStats{Name: name, ExitCodes: make(map[int]int)}
		t.procs[name] = ps
		t.order = append(t.order, name)
	}
	return ps
}

// RecordSpawn records a successful spawn.
func (t *Tracker) RecordSpawn(name string) {
	t.mu.Lock()
	t.get(name).Spawns++
	t.mu.Unlock()
}

// RecordSpawnFailure records a spawn that never started.
func (t *Tracker) RecordSpawnFailure(name string) {
	t.mu.Lock()
	t.get(name).SpawnFailures++
	t.mu.Unlock()
}

// RecordRestart records an automatic or manual restart.
func (t *Tracker) RecordRestart(name string) {
	t.mu.Lock()
	t.get(name).Restarts++
	t.mu.Unlock()
}

// RecordExit records an exit. A nil exitCode means killed by a signal.
func (t *Tracker) RecordExit(name string, exitCode *int, uptime time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ps := t.get(name)
	ps.Exits++
	ps.TotalUptime += uptime
	if exitCode == nil {
		ps.Signalled++
		ps.LastExitCode = nil
	} else {
		ps.ExitCodes[*exitCode]++
		code := *exitCode
		ps.LastExitCode = &code
	}
	if uptime > 0 {
		t.uptimeDigest.Add(float64(uptime), 1)
	}
}

// RecordCommand records an ephemeral command's run time.
func (t *Tracker) RecordCommand(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands++
	if d > 0 {
		t.commandDigest.Add(float64(d), 1)
	}
}

// Summary is a point-in-time copy of the tracker.
type Summary struct {
	Duration  time.Duration
	Processes []ProcessStats

	TotalSpawns   int
	TotalRestarts int
	TotalExits    int

	UptimeP50 time.Duration
	UptimeP95 time.Duration
	UptimeP99 time.Duration

	Commands   int
	CommandP50 time.Duration
	CommandP95 time.Duration
}

// Summary returns a copy of the current statistics. Processes keep first-seen
// order.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		Duration: t.now().Sub(t.start),
		Commands: t.commands,
	}
	for _, name := range t.order {
		ps := *t.procs[name]
		ps.ExitCodes = make(map[int]int, len(t.procs[name].ExitCodes))
		for k, v := range t.procs[name].ExitCodes {
			ps.ExitCodes[k] = v
		}
		s.Processes = append(s.Processes, ps)
		s.TotalSpawns += ps.Spawns
		s.TotalRestarts += ps.Restarts
		s.TotalExits += ps.Exits
	}
	if t.uptimeDigest.Count() > 0 {
		s.UptimeP50 = quantile(t.uptimeDigest, 0.50)
		s.UptimeP95 = quantile(t.uptimeDigest, 0.95)
		s.UptimeP99 = quantile(t.uptimeDigest, 0.99)
	}
	if t.commandDigest.Count() > 0 {
		s.CommandP50 = quantile(t.commandDigest, 0.50)
		s.CommandP95 = quantile(t.commandDigest, 0.95)
	}
	return s
}

func quantile(td *tdigest.TDigest, q float64) time.Duration {
	return time.Duration(td.Quantile(q))
}

// SortedExitCodes returns the codes of ps in ascending order.
func (ps ProcessStats) SortedExitCodes() []int {
	codes := make([]int, 0, len(ps.ExitCodes))
	for code := range ps.ExitCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}
