// Package supervisor owns the child processes of the managed dev services:
// spawning, output capture, exit detection, and process-group termination.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/go-devmux/internal/process"
)

var (
	// ErrProcessNotFound is returned for an ID that was never registered.
	ErrProcessNotFound = errors.New("process not registered")

	// ErrForceKilled is returned when a process ignored SIGTERM and had to
	// be killed.
	ErrForceKilled = errors.New("process did not exit gracefully")
)

// SpawnError reports a process that could not be started.
type SpawnError struct {
	ID      process.ID
	Command string
	Reason  string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %s", e.ID.Name(), e.Reason)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Output is one line read from a child's stdout or stderr.
type Output struct {
	ID         process.ID
	Generation uint64
	Line       string
	IsStderr   bool
}

// Exit describes the termination of one spawned instance. Exactly one Exit
// is reported per instance.
type Exit struct {
	ID         process.ID
	Generation uint64
	PID        int

	// ExitCode is nil when the process was signalled or force-killed.
	ExitCode *int

	// Requested is true when the exit was caused by Kill, Restart, or KillAll.
	Requested bool
	Uptime    time.Duration
}

// Callbacks receive output and exit notifications. They are invoked from
// supervisor goroutines and must be safe for concurrent use.
type Callbacks struct {
	OnOutput func(Output)
	OnExit   func(Exit)
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Logger    *slog.Logger
	Callbacks Callbacks
	Backoff   BackoffConfig

	KillTimeout     time.Duration // SIGTERM grace for Kill and Restart (default: 5s)
	ShutdownTimeout time.Duration // SIGTERM grace per process in KillAll (default: 1s)
	RestartDelay    time.Duration // Pause between kill and spawn in Restart (default: 500ms)
}

const (
	defaultKillTimeout     = 5 * time.Second
	defaultShutdownTimeout = time.Second
	defaultRestartDelay    = 500 * time.Millisecond

	maxLineBytes = 1024 * 1024
)

// Supervisor manages the registered processes. All methods except the
// callbacks it invokes must be called from a single goroutine.
type Supervisor struct {
	ctx       context.Context
	logger    *slog.Logger
	callbacks Callbacks
	backoff   BackoffConfig

	killTimeout     time.Duration
	shutdownTimeout time.Duration
	restartDelay    time.Duration

	configs  map[process.ID]process.Config
	order    []process.ID
	children map[process.ID]*child
	restarts map[process.ID]*RestartState
	nextGen  uint64

	reports sync.WaitGroup // in-flight requested exit reports
}

// child is one spawned instance.
type child struct {
	id        process.ID
	gen       uint64
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time

	done     chan struct{} // closed once Wait returns
	exitCode *int          // valid after done is closed

	requested atomic.Bool
	report    sync.Once
}

// New creates a Supervisor. Output forwarding stops once ctx is done.
func New(ctx context.Context, cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	backoff := cfg.Backoff
	if backoff.Initial <= 0 {
		backoff = DefaultBackoffConfig()
	}

	return &Supervisor{
		ctx:             ctx,
		logger:          logger,
		callbacks:       cfg.Callbacks,
		backoff:         backoff,
		killTimeout:     orDefault(cfg.KillTimeout, defaultKillTimeout),
		shutdownTimeout: orDefault(cfg.ShutdownTimeout, defaultShutdownTimeout),
		restartDelay:    orDefault(cfg.RestartDelay, defaultRestartDelay),
		configs:         make(map[process.ID]process.Config),
		children:        make(map[process.ID]*child),
		restarts:        make(map[process.ID]*RestartState),
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Register adds or replaces the configuration for cfg.ID. A replaced
// config takes effect on the next spawn.
func (s *Supervisor) Register(cfg process.Config) {
	if _, ok := s.configs[cfg.ID]; !ok {
		s.order = append(s.order, cfg.ID)
	}
	s.configs[cfg.ID] = cfg.Clone()
}

// Unregister kills id and forgets its configuration. Restart history is kept.
func (s *Supervisor) Unregister(id process.ID) {
	if err := s.Kill(id); err != nil {
		s.logger.Warn("process_kill_failed", "process", id.Name(), "error", err)
	}
	delete(s.configs, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Config returns the registered configuration for id.
func (s *Supervisor) Config(id process.ID) (process.Config, bool) {
	cfg, ok := s.configs[id]
	return cfg, ok
}

// IDs returns registered processes in registration order.
func (s *Supervisor) IDs() []process.ID {
	return append([]process.ID(nil), s.order...)
}

// Spawn starts id, killing any live instance first.
func (s *Supervisor) Spawn(id process.ID) error {
	cfg, ok := s.configs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}
	if err := s.Kill(id); err != nil {
		s.logger.Warn("process_kill_failed", "process", id.Name(), "error", err)
	}

	cmd := process.BuildCommand(cfg)
	process.SetProcessGroup(cmd)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return &SpawnError{ID: id, Command: cfg.Command, Reason: "create stdout pipe", Err: err}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return &SpawnError{ID: id, Command: cfg.Command, Reason: "create stderr pipe", Err: err}
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		s.logger.Error("process_spawn_failed",
			"process", id.Name(),
			"command", cfg.CommandLine(),
			"error", err,
		)
		return &SpawnError{
			ID:      id,
			Command: cfg.Command,
			Reason:  process.DescribeStartError(cfg.Command, err),
			Err:     err,
		}
	}

	// The child holds its own copies; readers see EOF once the group exits.
	stdoutW.Close()
	stderrW.Close()

	s.nextGen++
	c := &child{
		id:        id,
		gen:       s.nextGen,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	s.children[id] = c
	s.restartState(id).ConsecutiveFailures = 0

	go s.pump(c, stdoutR, false)
	go s.pump(c, stderrR, true)
	go s.wait(c)

	s.logger.Info("process_spawned",
		"process", id.Name(),
		"pid", c.pid,
		"generation", c.gen,
		"command", cfg.CommandLine(),
	)
	return nil
}

// Kill terminates the live instance of id, if any: SIGTERM to the process
// group, then SIGKILL after the kill timeout. The exit is reported through
// OnExit with Requested set.
func (s *Supervisor) Kill(id process.ID) error {
	c, ok := s.children[id]
	if !ok {
		return nil
	}
	delete(s.children, id)

	code, err := s.terminate(c, s.killTimeout)
	s.reportAsync(c, code)
	return err
}

// Restart kills id, waits the restart delay, then spawns it again.
func (s *Supervisor) Restart(ctx context.Context, id process.ID) error {
	if _, ok := s.configs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}
	if err := s.Kill(id); err != nil {
		s.logger.Warn("process_kill_failed", "process", id.Name(), "error", err)
	}

	timer := time.NewTimer(s.restartDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return s.Spawn(id)
}

// KillAll terminates every live instance in parallel, each with the
// shutdown timeout, so the total wait is bounded by roughly one timeout.
func (s *Supervisor) KillAll() error {
	children := s.children
	s.children = make(map[process.ID]*child)

	var g errgroup.Group
	for _, c := range children {
		g.Go(func() error {
			code, err := s.terminate(c, s.shutdownTimeout)
			s.reportAsync(c, code)
			return err
		})
	}
	return g.Wait()
}

// IsRunning reports whether id has a live instance.
func (s *Supervisor) IsRunning(id process.ID) bool {
	c, ok := s.children[id]
	if !ok {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// RunningCount returns the number of live instances.
func (s *Supervisor) RunningCount() int {
	n := 0
	for id := range s.children {
		if s.IsRunning(id) {
			n++
		}
	}
	return n
}

// PID returns the pid of the live instance of id.
func (s *Supervisor) PID(id process.ID) (int, bool) {
	if !s.IsRunning(id) {
		return 0, false
	}
	return s.children[id].pid, true
}

// Generation returns the generation of the current instance of id.
func (s *Supervisor) Generation(id process.ID) (uint64, bool) {
	c, ok := s.children[id]
	if !ok {
		return 0, false
	}
	return c.gen, true
}

// Reap drops the table entry for id if it belongs to generation gen and
// has exited.
func (s *Supervisor) Reap(id process.ID, gen uint64) {
	c, ok := s.children[id]
	if !ok || c.gen != gen {
		return
	}
	select {
	case <-c.done:
		delete(s.children, id)
	default:
	}
}

// IsSupervised reports whether id manages its own workers.
func (s *Supervisor) IsSupervised(id process.ID) bool {
	return s.configs[id].Supervised
}

// ShouldRestart applies the restart policy of id to an exit code.
func (s *Supervisor) ShouldRestart(id process.ID, exitCode *int) bool {
	cfg, ok := s.configs[id]
	if !ok {
		return false
	}
	return ShouldRestart(cfg, exitCode)
}

// RecordFailure counts a crash of id.
func (s *Supervisor) RecordFailure(id process.ID) {
	s.restartState(id).recordFailure(time.Now())
}

// BackoffDelay returns the wait before auto-restarting id.
func (s *Supervisor) BackoffDelay(id process.ID) time.Duration {
	return s.backoff.Delay(s.restartState(id).ConsecutiveFailures)
}

// RestartState returns a copy of the crash history of id.
func (s *Supervisor) RestartState(id process.ID) RestartState {
	if st, ok := s.restarts[id]; ok {
		return *st
	}
	return RestartState{}
}

func (s *Supervisor) restartState(id process.ID) *RestartState {
	st, ok := s.restarts[id]
	if !ok {
		st = &RestartState{}
		s.restarts[id] = st
	}
	return st
}

// terminate stops c and returns its exit code. Safe to call concurrently
// for distinct children.
func (s *Supervisor) terminate(c *child, timeout time.Duration) (*int, error) {
	c.requested.Store(true)

	select {
	case <-c.done:
		return c.exitCode, nil
	default:
	}

	if err := process.Terminate(c.cmd.Process); err != nil {
		_ = process.ForceKill(c.cmd.Process)
		<-c.done
		return nil, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return c.exitCode, nil
	case <-timer.C:
		s.logger.Warn("force_killing_process",
			"process", c.id.Name(),
			"pid", c.pid,
			"timeout", timeout.String(),
		)
		_ = process.ForceKill(c.cmd.Process)
		<-c.done
		return nil, fmt.Errorf("%s: %w", c.id.Name(), ErrForceKilled)
	}
}

// wait blocks until c exits and reports unrequested exits.
func (s *Supervisor) wait(c *child) {
	err := c.cmd.Wait()
	c.exitCode = process.ExitCode(err)
	close(c.done)

	if c.requested.Load() {
		return
	}
	s.logger.Info("process_exited",
		"process", c.id.Name(),
		"pid", c.pid,
		"exit_code", formatExitCode(c.exitCode),
		"uptime", time.Since(c.startedAt).String(),
	)
	s.reportExit(c, c.exitCode, false)
}

// reportAsync reports a requested exit off the caller's goroutine: the
// caller may be the consumer the callback delivers to.
func (s *Supervisor) reportAsync(c *child, code *int) {
	s.reports.Add(1)
	go func() {
		defer s.reports.Done()
		s.reportExit(c, code, true)
	}()
}

// WaitReports blocks until every requested exit has been delivered to
// OnExit. Callers must not be the goroutine draining OnExit deliveries
// unless those deliveries cannot block.
func (s *Supervisor) WaitReports() {
	s.reports.Wait()
}

func (s *Supervisor) reportExit(c *child, code *int, requested bool) {
	c.report.Do(func() {
		if s.callbacks.OnExit == nil {
			return
		}
		s.callbacks.OnExit(Exit{
			ID:         c.id,
			Generation: c.gen,
			PID:        c.pid,
			ExitCode:   code,
			Requested:  requested,
			Uptime:     time.Since(c.startedAt),
		})
	})
}

// pump forwards lines from r until EOF. After shutdown it keeps draining
// so the child never blocks on a full pipe.
func (s *Supervisor) pump(c *child, r *os.File, isStderr bool) {
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if s.callbacks.OnOutput == nil || s.ctx.Err() != nil {
			continue
		}
		s.callbacks.OnOutput(Output{
			ID:         c.id,
			Generation: c.gen,
			Line:       strings.TrimRight(scanner.Text(), "\r"),
			IsStderr:   isStderr,
		})
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug("output_reader_stopped",
			"process", c.id.Name(),
			"stderr", isStderr,
			"error", err,
		)
		_, _ = io.Copy(io.Discard, r)
	}
}

func formatExitCode(code *int) string {
	if code == nil {
		return "signal"
	}
	return fmt.Sprint(*code)
}
