// Package orchestrator runs the reconciliation loop: the single goroutine
// that consumes every event and owns process, log and command state.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-devmux/internal/command"
	"github.com/randomizedcoder/go-devmux/internal/events"
	"github.com/randomizedcoder/go-devmux/internal/logging"
	"github.com/randomizedcoder/go-devmux/internal/logtail"
	"github.com/randomizedcoder/go-devmux/internal/metrics"
	"github.com/randomizedcoder/go-devmux/internal/process"
	"github.com/randomizedcoder/go-devmux/internal/ring"
	"github.com/randomizedcoder/go-devmux/internal/stats"
	"github.com/randomizedcoder/go-devmux/internal/supervisor"
)

const (
	// DefaultTickInterval is how often a snapshot is published.
	DefaultTickInterval = 100 * time.Millisecond

	// DefaultLogLines is the log pane capacity.
	DefaultLogLines = 500
)

// Config holds configuration for creating an Orchestrator.
type Config struct {
	ProjectDir string
	Processes  []process.Config
	Registry   *process.Registry

	// Log tailing.
	LogDir    string
	TailFiles []string
	LogLines  int
	NoLogTail bool
	PreRoll   int

	// Supervisor timing.
	Backoff         supervisor.BackoffConfig
	KillTimeout     time.Duration
	ShutdownTimeout time.Duration
	RestartDelay    time.Duration

	TickInterval time.Duration

	// AutoStart spawns every process when Run begins.
	AutoStart bool

	// Verbose mirrors every output line into the logger, not just errors.
	Verbose bool

	Logger  *slog.Logger
	Metrics *metrics.Collector
	Stats   *stats.Tracker
}

// Orchestrator wires the supervisor, log tailer and command runner to the
// event bus and applies every event in order.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	bus     *events.Bus
	sup     *supervisor.Supervisor
	runner  *command.Runner
	tailer  *logtail.Tailer
	mirror  *logging.OutputMirror
	metrics *metrics.Collector
	stats   *stats.Tracker

	snapshot atomic.Pointer[Snapshot]
	started  atomic.Bool
	done     chan struct{}

	// Owned by the loop goroutine.
	registry   *process.Registry
	procs      map[process.ID]*process.Process
	order      []process.ID
	gens       map[process.ID]uint64
	pending    map[process.ID]pendingRestart
	restartSeq uint64
	outputs    map[process.ID][]process.OutputLine // snapshot cache, nil when stale
	logs       *ring.Buffer[logtail.Entry]
	logFiles   map[string]bool
	logErr     string
	cmd        commandState
	wg         sync.WaitGroup
}

type pendingRestart struct {
	seq    uint64
	due    time.Time
	cancel context.CancelFunc
}

type commandState struct {
	runID     string
	label     string
	running   bool
	startedAt time.Time
	duration  time.Duration
	exitCode  *int
	cancelled bool
	output    *ring.Buffer[process.OutputLine]
}

// New creates an Orchestrator. Nothing runs until Run is called.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.LogLines <= 0 {
		cfg.LogLines = DefaultLogLines
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewTracker()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = process.NewRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		bus:      events.NewBus(events.DefaultBufferSize),
		mirror:   logging.NewOutputMirror(logger, cfg.Verbose),
		metrics:  cfg.Metrics,
		stats:    cfg.Stats,
		done:     make(chan struct{}),
		registry: registry,
		procs:    make(map[process.ID]*process.Process),
		gens:     make(map[process.ID]uint64),
		pending:  make(map[process.ID]pendingRestart),
		outputs:  make(map[process.ID][]process.OutputLine),
		logs:     ring.New[logtail.Entry](cfg.LogLines),
		logFiles: make(map[string]bool),
		cmd:      commandState{output: ring.New[process.OutputLine](process.MaxOutputLines)},
	}

	o.sup = supervisor.New(ctx, supervisor.Config{
		Logger:          logger,
		Backoff:         cfg.Backoff,
		KillTimeout:     cfg.KillTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		RestartDelay:    cfg.RestartDelay,
		Callbacks: supervisor.Callbacks{
			OnOutput: o.onProcessOutput,
			OnExit:   o.onProcessExit,
		},
	})
	o.runner = command.NewRunner(ctx, logger, command.Callbacks{
		OnOutput: func(out command.Output) {
			o.send(events.CommandOutput{RunID: out.RunID, Line: out.Line, IsStderr: out.IsStderr})
		},
		OnExit: func(ex command.Exit) {
			o.send(events.CommandExited{
				RunID:     ex.RunID,
				ExitCode:  ex.ExitCode,
				Cancelled: ex.Cancelled,
				Duration:  ex.Duration,
			})
		},
	})
	if !cfg.NoLogTail {
		o.tailer = logtail.New(logtail.Config{
			Dir:     cfg.LogDir,
			Files:   cfg.TailFiles,
			PreRoll: cfg.PreRoll,
			Logger:  logger,
			OnEntries: func(entries []logtail.Entry) {
				o.send(events.LogUpdate{Entries: entries})
			},
		})
	}
	if reg := o.metrics.Registerer(); reg != nil {
		o.metrics.RegisterQueueDepth(reg, o.bus.Len)
	}

	for _, pc := range cfg.Processes {
		o.register(pc)
	}
	o.publish()
	return o
}

// Run starts the producers and processes events until ctx is cancelled or
// Stop is called, then kills every process. It may be called once.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return errors.New("orchestrator already running")
	}
	defer close(o.done)
	stop := context.AfterFunc(ctx, o.cancel)
	defer stop()

	o.logger.Info("orchestrator_starting",
		"project", o.cfg.ProjectDir,
		"processes", len(o.order),
	)

	if o.tailer != nil {
		if err := o.tailer.Start(o.ctx); err != nil {
			o.logErr = err.Error()
			o.logger.Warn("log_watch_disabled", "error", err)
		}
	}

	o.wg.Add(1)
	go o.tick()

	if o.cfg.AutoStart {
		o.spawnAll()
	}
	o.publish()

	for {
		select {
		case <-o.ctx.Done():
			o.shutdown()
			return nil
		case ev := <-o.bus.Events():
			o.handle(ev)
		}
	}
}

// Stop cancels the run. Run returns once every process has been killed.
func (o *Orchestrator) Stop() { o.cancel() }

// Done is closed when Run has returned.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Snapshot returns the most recently published state. It is never nil and
// must not be modified.
func (o *Orchestrator) Snapshot() *Snapshot { return o.snapshot.Load() }

func (o *Orchestrator) tick() {
	defer o.wg.Done()
	t := time.NewTicker(o.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-o.ctx.Done():
			return
		case now := <-t.C:
			o.send(events.Tick{At: now})
		}
	}
}

// send delivers ev to the loop. ErrBusClosed means shutdown is under way.
func (o *Orchestrator) send(ev events.Event) {
	_ = o.bus.Send(o.ctx, ev)
}

func (o *Orchestrator) shutdown() {
	o.logger.Info("orchestrator_stopping", "running", o.sup.RunningCount())
	for id := range o.pending {
		o.cancelPending(id)
	}
	if err := o.sup.KillAll(); err != nil {
		o.logger.Warn("shutdown_incomplete", "error", err)
	}
	// The bus context is done, so exit deliveries cannot block here.
	o.sup.WaitReports()
	for _, p := range o.procs {
		p.Status = process.StatusStopped
		p.PID = 0
	}
	o.wg.Wait()
	o.publish()
	o.logger.Info("orchestrator_stopped")
}

// =============================================================================
// Callbacks (producer side)
// =============================================================================

func (o *Orchestrator) onProcessOutput(out supervisor.Output) {
	o.mirror.HandleLine(out.ID, out.Line, out.IsStderr)
	o.metrics.OutputLine(out.ID.Name(), out.IsStderr)
	o.send(events.ProcessOutput{
		ID:         out.ID,
		Generation: out.Generation,
		Line:       out.Line,
		IsStderr:   out.IsStderr,
	})
}

// onProcessExit records statistics before delivery so that exits during
// shutdown are still counted.
func (o *Orchestrator) onProcessExit(ex supervisor.Exit) {
	o.stats.RecordExit(ex.ID.Name(), ex.ExitCode, ex.Uptime)
	o.metrics.ProcessExited(ex.ID.Name(), ex.ExitCode, ex.Requested, ex.Uptime)
	o.send(events.ProcessExited{
		ID:         ex.ID,
		Generation: ex.Generation,
		PID:        ex.PID,
		ExitCode:   ex.ExitCode,
		Requested:  ex.Requested,
		Uptime:     ex.Uptime,
	})
}

// =============================================================================
// Requests (UI side)
// =============================================================================

// Spawn starts id, replacing a live instance.
func (o *Orchestrator) Spawn(id process.ID) { o.send(events.SpawnRequest{ID: id}) }

// Kill stops id.
func (o *Orchestrator) Kill(id process.ID) { o.send(events.KillRequest{ID: id}) }

// Restart kills id and starts it again after the restart delay.
func (o *Orchestrator) Restart(id process.ID) { o.send(events.RestartRequest{ID: id}) }

// SpawnAll starts every process that is not active.
func (o *Orchestrator) SpawnAll() { o.send(events.SpawnAllRequest{}) }

// KillAll stops every process.
func (o *Orchestrator) KillAll() { o.send(events.KillAllRequest{}) }

// RestartAll restarts every process.
func (o *Orchestrator) RestartAll() { o.send(events.RestartAllRequest{}) }

// ClearOutput empties the output buffer of id.
func (o *Orchestrator) ClearOutput(id process.ID) { o.send(events.ClearOutputRequest{ID: id}) }

// Scroll moves the output view of id; positive delta scrolls back.
func (o *Orchestrator) Scroll(id process.ID, delta int) {
	o.send(events.ScrollRequest{ID: id, Delta: delta})
}

// ClearLogs empties the log pane.
func (o *Orchestrator) ClearLogs() { o.send(events.ClearLogsRequest{}) }

// RunCommand starts an ephemeral command, cancelling any running one.
func (o *Orchestrator) RunCommand(req command.Request) {
	o.send(events.RunCommandRequest{
		Label:   req.Label,
		Command: req.Command,
		Args:    req.Args,
		Dir:     req.Dir,
		Env:     req.Env,
		Input:   req.Input,
	})
}

// CancelCommand cancels the running ephemeral command.
func (o *Orchestrator) CancelCommand() { o.send(events.CancelCommandRequest{}) }

// ClearCommand empties the command pane once the command has finished.
func (o *Orchestrator) ClearCommand() { o.send(events.ClearCommandRequest{}) }

// WriteStdin sends a line to the running ephemeral command. It bypasses the
// loop; the runner serialises writers.
func (o *Orchestrator) WriteStdin(line string) error {
	return o.runner.WriteStdin(line)
}

// Reload replaces the process configurations.
func (o *Orchestrator) Reload(configs []process.Config, registry *process.Registry) {
	o.send(events.ConfigReloaded{Configs: configs, Registry: registry})
}
