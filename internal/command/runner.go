// Package command runs one-off commands (artisan, composer, quality tools)
// whose output is streamed to a single pane and whose stdin is writable.
package command

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
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/go-devmux/internal/process"
)

// ErrNoCommand is returned by WriteStdin when no command is accepting input.
var ErrNoCommand = errors.New("no command running")

// Request describes a command to run.
type Request struct {
	Label   string // shown in the pane title; defaults to the command line
	Command string
	Args    []string
	Dir     string
	Env     map[string]string

	// Input lines are written to stdin right after start.
	Input []string
}

// CommandLine returns the command and arguments joined for display.
func (r Request) CommandLine() string {
	if len(r.Args) == 0 {
		return r.Command
	}
	return r.Command + " " + strings.Join(r.Args, " ")
}

// Output is one line of command output.
type Output struct {
	RunID    string
	Line     string
	IsStderr bool
}

// Exit reports the end of a run. ExitCode is nil when the run was
// cancelled or killed by a signal.
type Exit struct {
	RunID     string
	ExitCode  *int
	Cancelled bool
	Duration  time.Duration
}

// Callbacks receive run output and exits from runner goroutines.
type Callbacks struct {
	OnOutput func(Output)
	OnExit   func(Exit)
}

// Runner runs at most one command at a time. Starting a new command
// cancels the current one.
type Runner struct {
	parent    context.Context
	logger    *slog.Logger
	callbacks Callbacks

	mu      sync.Mutex
	current *run
	stdin   io.WriteCloser
}

type run struct {
	id     string
	cancel context.CancelFunc
}

// NewRunner creates a Runner whose runs are cancelled when parent is done.
func NewRunner(parent context.Context, logger *slog.Logger, callbacks Callbacks) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{parent: parent, logger: logger, callbacks: callbacks}
}

// Run starts req and returns its run ID. Output and the exit are tagged
// with the run ID so that lines from a superseded run can be discarded.
func (r *Runner) Run(req Request) (string, error) {
	r.Cancel()

	cmd := exec.Command(req.Command, req.Args...)
	cmd.Dir = req.Dir
	cmd.Env = process.MergeEnv(os.Environ(), process.ColorEnv, req.Env)
	process.SetProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return "", fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return "", errors.New(process.DescribeStartError(req.Command, err))
	}
	stdoutW.Close()
	stderrW.Close()

	ctx, cancel := context.WithCancel(r.parent)
	rn := &run{id: uuid.NewString(), cancel: cancel}

	r.mu.Lock()
	r.current = rn
	r.stdin = stdin
	r.mu.Unlock()

	r.logger.Info("command_started",
		"run_id", rn.id,
		"command", req.CommandLine(),
		"pid", cmd.Process.Pid,
	)

	go r.pump(rn.id, stdoutR, false)
	go r.pump(rn.id, stderrR, true)
	go r.supervise(ctx, rn, cmd)

	for _, line := range req.Input {
		if err := r.WriteStdin(line); err != nil {
			r.logger.Debug("command_input_failed", "run_id", rn.id, "error", err)
			break
		}
	}
	return rn.id, nil
}

// supervise waits for cmd to exit or for ctx to be cancelled, then reports
// exactly one Exit.
func (r *Runner) supervise(ctx context.Context, rn *run, cmd *exec.Cmd) {
	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var exit Exit
	select {
	case err := <-done:
		exit = Exit{RunID: rn.id, ExitCode: process.ExitCode(err)}
	case <-ctx.Done():
		_ = process.ForceKill(cmd.Process)
		<-done
		exit = Exit{RunID: rn.id, Cancelled: true}
	}
	exit.Duration = time.Since(start)
	rn.cancel()

	r.mu.Lock()
	if r.current == rn {
		r.current = nil
		if r.stdin != nil {
			r.stdin.Close()
			r.stdin = nil
		}
	}
	r.mu.Unlock()

	r.logger.Info("command_exited",
		"run_id", rn.id,
		"cancelled", exit.Cancelled,
		"duration", exit.Duration.String(),
	)
	if r.callbacks.OnExit != nil {
		r.callbacks.OnExit(exit)
	}
}

// Cancel kills the current run, if any. Its Exit is still reported, with a
// nil exit code.
func (r *Runner) Cancel() {
	r.mu.Lock()
	rn := r.current
	r.current = nil
	if r.stdin != nil {
		r.stdin.Close()
		r.stdin = nil
	}
	r.mu.Unlock()

	if rn != nil {
		r.logger.Debug("command_cancelled", "run_id", rn.id)
		rn.cancel()
	}
}

// Running returns the ID of the current run.
func (r *Runner) Running() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return "", false
	}
	return r.current.id, true
}

// WriteStdin sends line, newline-terminated, to the current run.
// Safe for concurrent use.
func (r *Runner) WriteStdin(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stdin == nil {
		return ErrNoCommand
	}
	if _, err := io.WriteString(r.stdin, line+"\n"); err != nil {
		return fmt.Errorf("write stdin: %w", err)
	}
	return nil
}

func (r *Runner) pump(runID string, f *os.File, isStderr bool) {
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if r.callbacks.OnOutput == nil || r.parent.Err() != nil {
			continue
		}
		r.callbacks.OnOutput(Output{
			RunID:    runID,
			Line:     strings.TrimRight(scanner.Text(), "\r"),
			IsStderr: isStderr,
		})
	}
	if scanner.Err() != nil {
		_, _ = io.Copy(io.Discard, f)
	}
}
