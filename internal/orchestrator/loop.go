package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/randomizedcoder/go-devmux/internal/command"
	"github.com/randomizedcoder/go-devmux/internal/events"
	"github.com/randomizedcoder/go-devmux/internal/process"
	"github.com/randomizedcoder/go-devmux/internal/supervisor"
)

// handle applies one event. Only the Run goroutine calls it.
func (o *Orchestrator) handle(ev events.Event) {
	o.metrics.EventHandled(ev.Kind())

	switch ev := ev.(type) {
	case events.Tick:
		o.publish()

	case events.ProcessOutput:
		if p, ok := o.procs[ev.ID]; ok {
			p.AddOutput(process.NewOutputLine(ev.Line, ev.IsStderr))
			o.touch(ev.ID)
		}
	case events.ProcessExited:
		o.handleExit(ev)
	case events.AutoRestartDue:
		o.handleRestartDue(ev)

	case events.LogUpdate:
		for _, e := range ev.Entries {
			o.logs.Push(e)
			o.logFiles[e.File] = true
			o.metrics.LogEntry(e.File, e.Level.String())
		}

	case events.CommandOutput:
		if ev.RunID == o.cmd.runID {
			o.cmd.output.Push(process.NewOutputLine(ev.Line, ev.IsStderr))
		}
	case events.CommandExited:
		o.handleCommandExit(ev)

	case events.ConfigReloaded:
		o.applyReload(ev)

	case events.SpawnRequest:
		if o.known(ev.ID) {
			o.spawn(ev.ID)
		}
	case events.KillRequest:
		if o.known(ev.ID) {
			o.kill(ev.ID)
		}
	case events.RestartRequest:
		if o.known(ev.ID) {
			o.restart(ev.ID)
		}
	case events.SpawnAllRequest:
		o.spawnAll()
	case events.KillAllRequest:
		o.killAll()
	case events.RestartAllRequest:
		for _, id := range o.order {
			o.restart(id)
		}

	case events.ClearOutputRequest:
		if p, ok := o.procs[ev.ID]; ok {
			p.ClearOutput()
			o.touch(ev.ID)
		}
	case events.ScrollRequest:
		if p, ok := o.procs[ev.ID]; ok {
			p.Scroll(ev.Delta)
		}
	case events.ClearLogsRequest:
		o.logs.Clear()

	case events.RunCommandRequest:
		o.runCommand(ev)
	case events.CancelCommandRequest:
		o.runner.Cancel()
	case events.ClearCommandRequest:
		if !o.cmd.running {
			o.cmd = commandState{output: o.cmd.output}
			o.cmd.output.Clear()
		}

	default:
		o.logger.Warn("unknown_event", "kind", ev.Kind())
	}
}

func (o *Orchestrator) known(id process.ID) bool {
	if _, ok := o.procs[id]; ok {
		return true
	}
	o.logger.Warn("unknown_process", "process", id.String())
	return false
}

// touch invalidates the cached output copy of id.
func (o *Orchestrator) touch(id process.ID) {
	delete(o.outputs, id)
}

// =============================================================================
// Process lifecycle
// =============================================================================

// register adds or updates cfg and reports whether the process is new.
func (o *Orchestrator) register(cfg process.Config) bool {
	o.sup.Register(cfg)
	if p, ok := o.procs[cfg.ID]; ok {
		p.Config = cfg.Clone()
		return false
	}
	o.procs[cfg.ID] = process.New(cfg.Clone())
	o.order = append(o.order, cfg.ID)
	return true
}

func (o *Orchestrator) spawn(id process.ID) {
	o.cancelPending(id)
	p := o.procs[id]
	name := o.registry.DisplayName(id)

	if err := o.sup.Spawn(id); err != nil {
		reason := err.Error()
		var spawnErr *supervisor.SpawnError
		if errors.As(err, &spawnErr) {
			reason = spawnErr.Reason
		}
		p.Status = process.StatusFailed
		p.PID = 0
		p.AddOutput(process.StderrLine(fmt.Sprintf("Failed to start %s: %s", name, reason)))
		o.touch(id)
		o.metrics.SpawnFailed(id.Name())
		o.stats.RecordSpawnFailure(id.Name())
		return
	}

	gen, _ := o.sup.Generation(id)
	pid, _ := o.sup.PID(id)
	o.gens[id] = gen
	p.PID = pid
	p.StartedAt = time.Now()
	p.Status = process.StatusRunning
	if o.sup.IsSupervised(id) {
		p.Status = process.StatusSupervised
	}
	p.AddOutput(process.StdoutLine(fmt.Sprintf("Started %s (PID: %d)", name, pid)))
	o.touch(id)
	o.metrics.ProcessSpawned(id.Name())
	o.stats.RecordSpawn(id.Name())
}

func (o *Orchestrator) spawnAll() {
	for _, id := range o.order {
		if !o.procs[id].Status.IsActive() {
			o.spawn(id)
		}
	}
}

// kill stops id. Exits of the killed instance still queued on the bus are
// stale afterwards, so a crash that raced the kill cannot schedule a restart.
func (o *Orchestrator) kill(id process.ID) {
	o.cancelPending(id)
	if err := o.sup.Kill(id); err != nil {
		o.logger.Warn("process_kill_failed", "process", id.Name(), "error", err)
	}
	delete(o.gens, id)
	p := o.procs[id]
	p.Status = process.StatusStopped
	p.PID = 0
}

func (o *Orchestrator) killAll() {
	for id := range o.pending {
		o.cancelPending(id)
	}
	if err := o.sup.KillAll(); err != nil {
		o.logger.Warn("process_kill_failed", "error", err)
	}
	clear(o.gens)
	for _, p := range o.procs {
		p.Status = process.StatusStopped
		p.PID = 0
	}
}

// restart kills id and schedules the respawn after the restart delay. A
// second restart while one is pending is ignored.
func (o *Orchestrator) restart(id process.ID) {
	p := o.procs[id]
	if p.Status == process.StatusRestarting {
		return
	}
	if err := o.sup.Kill(id); err != nil {
		o.logger.Warn("process_kill_failed", "process", id.Name(), "error", err)
	}
	delete(o.gens, id)
	p.Status = process.StatusRestarting
	p.PID = 0
	o.metrics.RestartRequested(id.Name())
	o.stats.RecordRestart(id.Name())
	o.scheduleRestart(id, o.restartDelay())
}

func (o *Orchestrator) restartDelay() time.Duration {
	if o.cfg.RestartDelay > 0 {
		return o.cfg.RestartDelay
	}
	return 500 * time.Millisecond
}

func (o *Orchestrator) handleExit(ev events.ProcessExited) {
	p, ok := o.procs[ev.ID]
	if !ok || o.gens[ev.ID] != ev.Generation {
		return
	}
	o.sup.Reap(ev.ID, ev.Generation)
	p.PID = 0

	o.logger.Info("process_exit_handled",
		"process", ev.ID.Name(),
		"exit_code", formatCode(ev.ExitCode),
		"requested", ev.Requested,
		"uptime", ev.Uptime.String(),
	)

	if ev.Requested {
		if p.Status == process.StatusRunning || p.Status == process.StatusSupervised {
			p.Status = process.StatusStopped
		}
		return
	}

	name := o.registry.DisplayName(ev.ID)
	switch {
	case o.sup.IsSupervised(ev.ID):
		p.Status = process.StatusStopped
		p.AddOutput(process.StdoutLine(name + " stopped (managed externally, not restarted)"))

	case o.sup.ShouldRestart(ev.ID, ev.ExitCode):
		o.sup.RecordFailure(ev.ID)
		delay := o.sup.BackoffDelay(ev.ID)
		p.Status = process.StatusRestarting
		p.AddOutput(process.StderrLine(fmt.Sprintf("%s exited (%s), restarting in %s",
			name, formatCode(ev.ExitCode), delay)))
		o.scheduleRestart(ev.ID, delay)
		o.metrics.RestartScheduled(ev.ID.Name(), delay)
		o.stats.RecordRestart(ev.ID.Name())
		o.logger.Info("auto_restart_scheduled",
			"process", ev.ID.Name(),
			"delay", delay.String(),
			"failures", o.sup.RestartState(ev.ID).ConsecutiveFailures,
		)

	case ev.ExitCode != nil && *ev.ExitCode == 0:
		p.Status = process.StatusStopped
		p.AddOutput(process.StdoutLine(name + " exited (code 0)"))

	default:
		p.Status = process.StatusFailed
		p.AddOutput(process.StderrLine(fmt.Sprintf("%s exited (%s)", name, formatCode(ev.ExitCode))))
	}
	o.touch(ev.ID)
}

// scheduleRestart starts a timer that only posts AutoRestartDue; the spawn
// happens when the loop consumes it.
func (o *Orchestrator) scheduleRestart(id process.ID, delay time.Duration) {
	o.cancelPending(id)
	o.restartSeq++
	seq := o.restartSeq

	ctx, cancel := context.WithCancel(o.ctx)
	o.pending[id] = pendingRestart{seq: seq, due: time.Now().Add(delay), cancel: cancel}

	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		_ = o.bus.Send(ctx, events.AutoRestartDue{ID: id, Seq: seq})
	}()
}

func (o *Orchestrator) cancelPending(id process.ID) {
	if pr, ok := o.pending[id]; ok {
		pr.cancel()
		delete(o.pending, id)
	}
}

func (o *Orchestrator) handleRestartDue(ev events.AutoRestartDue) {
	pr, ok := o.pending[ev.ID]
	if !ok || pr.seq != ev.Seq {
		return
	}
	delete(o.pending, ev.ID)
	pr.cancel()

	p, ok := o.procs[ev.ID]
	if !ok || p.Status != process.StatusRestarting {
		return
	}
	o.spawn(ev.ID)
}

// applyReload registers every new configuration and removes processes that
// are no longer configured. Changed configurations apply on next spawn;
// new processes are started when the run auto-starts.
func (o *Orchestrator) applyReload(ev events.ConfigReloaded) {
	if ev.Registry != nil {
		o.registry = ev.Registry
	}
	keep := make(map[process.ID]bool, len(ev.Configs))
	var added []process.ID
	for _, cfg := range ev.Configs {
		keep[cfg.ID] = true
		if o.register(cfg) {
			added = append(added, cfg.ID)
		}
	}

	order := o.order[:0]
	for _, id := range o.order {
		if keep[id] {
			order = append(order, id)
			continue
		}
		o.cancelPending(id)
		o.sup.Unregister(id)
		delete(o.procs, id)
		delete(o.gens, id)
		o.touch(id)
		o.mirror.Forget(id)
		o.metrics.RemoveProcess(id.Name())
		o.logger.Info("process_removed", "process", id.Name())
	}
	o.order = order
	if o.cfg.AutoStart {
		for _, id := range added {
			o.spawn(id)
		}
	}
	o.logger.Info("config_applied", "processes", len(o.order), "added", len(added))
}

// =============================================================================
// Ephemeral commands
// =============================================================================

func (o *Orchestrator) runCommand(ev events.RunCommandRequest) {
	req := command.Request{
		Label:   ev.Label,
		Command: ev.Command,
		Args:    ev.Args,
		Dir:     ev.Dir,
		Env:     ev.Env,
		Input:   ev.Input,
	}
	if req.Dir == "" {
		req.Dir = o.cfg.ProjectDir
	}
	label := req.Label
	if label == "" {
		label = req.CommandLine()
	}

	o.cmd.output.Clear()
	o.cmd = commandState{
		label:     label,
		startedAt: time.Now(),
		output:    o.cmd.output,
	}
	o.cmd.output.Push(process.StdoutLine("$ " + req.CommandLine()))

	runID, err := o.runner.Run(req)
	if err != nil {
		o.cmd.output.Push(process.StderrLine(err.Error()))
		o.metrics.CommandFinished(nil, false, 0)
		o.logger.Warn("command_start_failed", "command", req.CommandLine(), "error", err)
		return
	}
	o.cmd.runID = runID
	o.cmd.running = true
}

func (o *Orchestrator) handleCommandExit(ev events.CommandExited) {
	if ev.RunID != o.cmd.runID {
		return
	}
	o.cmd.running = false
	o.cmd.exitCode = ev.ExitCode
	o.cmd.cancelled = ev.Cancelled
	o.cmd.duration = ev.Duration

	switch {
	case ev.Cancelled:
		o.cmd.output.Push(process.StderrLine("Cancelled"))
	case ev.ExitCode != nil && *ev.ExitCode == 0:
		o.cmd.output.Push(process.StdoutLine(fmt.Sprintf("Completed in %s", ev.Duration.Round(time.Millisecond))))
	default:
		o.cmd.output.Push(process.StderrLine(fmt.Sprintf("Exited (%s)", formatCode(ev.ExitCode))))
	}
	o.metrics.CommandFinished(ev.ExitCode, ev.Cancelled, ev.Duration)
	o.stats.RecordCommand(ev.Duration)
}

func formatCode(code *int) string {
	if code == nil {
		return "signal"
	}
	return fmt.Sprintf("code %d", *code)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
