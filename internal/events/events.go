// Package events defines the messages consumed by the reconciliation loop
// and the bounded bus that carries them.
package events

import (
	"time"

	"github.com/randomizedcoder/go-devmux/internal/logtail"
	"github.com/randomizedcoder/go-devmux/internal/process"
)

// Event is any message delivered to the reconciliation loop.
type Event interface {
	// Kind returns a short stable name used in logs and metrics.
	Kind() string
}

// Tick drives periodic snapshot publication.
type Tick struct{ At time.Time }

// ProcessOutput is one line from a managed process.
type ProcessOutput struct {
	ID         process.ID
	Generation uint64
	Line       string
	IsStderr   bool
}

// ProcessExited reports the end of one spawned instance.
type ProcessExited struct {
	ID         process.ID
	Generation uint64
	PID        int
	ExitCode   *int
	Requested  bool
	Uptime     time.Duration
}

// AutoRestartDue fires when a scheduled backoff elapses. Seq identifies the
// schedule so that a superseded timer is ignored.
type AutoRestartDue struct {
	ID  process.ID
	Seq uint64
}

// LogUpdate carries new log entries from one file.
type LogUpdate struct{ Entries []logtail.Entry }

// CommandOutput is one line from the ephemeral command.
type CommandOutput struct {
	RunID    string
	Line     string
	IsStderr bool
}

// CommandExited reports the end of an ephemeral command.
type CommandExited struct {
	RunID     string
	ExitCode  *int
	Cancelled bool
	Duration  time.Duration
}

// ConfigReloaded replaces the process configurations and registry.
type ConfigReloaded struct {
	Configs  []process.Config
	Registry *process.Registry
}

// Requests issued by the UI or signal handlers.
type (
	SpawnRequest   struct{ ID process.ID }
	KillRequest    struct{ ID process.ID }
	RestartRequest struct{ ID process.ID }

	SpawnAllRequest   struct{}
	KillAllRequest    struct{}
	RestartAllRequest struct{}

	ClearOutputRequest struct{ ID process.ID }
	ScrollRequest      struct {
		ID    process.ID
		Delta int
	}
	ClearLogsRequest struct{}

	RunCommandRequest struct {
		Label   string
		Command string
		Args    []string
		Dir     string // defaults to the project directory
		Env     map[string]string
		Input   []string
	}
	CancelCommandRequest struct{}
	ClearCommandRequest  struct{}
)

func (Tick) Kind() string           { return "tick" }
func (ProcessOutput) Kind() string  { return "process_output" }
func (ProcessExited) Kind() string  { return "process_exited" }
func (AutoRestartDue) Kind() string { return "auto_restart_due" }
func (LogUpdate) Kind() string      { return "log_update" }
func (CommandOutput) Kind() string  { return "command_output" }
func (CommandExited) Kind() string  { return "command_exited" }
func (ConfigReloaded) Kind() string { return "config_reloaded" }

func (SpawnRequest) Kind() string         { return "spawn" }
func (KillRequest) Kind() string          { return "kill" }
func (RestartRequest) Kind() string       { return "restart" }
func (SpawnAllRequest) Kind() string      { return "spawn_all" }
func (KillAllRequest) Kind() string       { return "kill_all" }
func (RestartAllRequest) Kind() string    { return "restart_all" }
func (ClearOutputRequest) Kind() string   { return "clear_output" }
func (ScrollRequest) Kind() string        { return "scroll" }
func (ClearLogsRequest) Kind() string     { return "clear_logs" }
func (RunCommandRequest) Kind() string    { return "run_command" }
func (CancelCommandRequest) Kind() string { return "cancel_command" }
func (ClearCommandRequest) Kind() string  { return "clear_command" }
