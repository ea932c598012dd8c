// Package metrics provides Prometheus metrics for go-devmux.
//
// All metrics are labelled by process name where that applies. Custom
// processes use their configured name, so cardinality stays bounded by the
// project file.
package metrics

import (
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const namespace = "devmux"

// Exit outcomes used as the "outcome" label.
const (
	OutcomeClean     = "clean"
	OutcomeFailed    = "failed"
	OutcomeSignalled = "signalled"
	OutcomeRequested = "requested"
)

// Command outcomes.
const (
	CommandSucceeded = "succeeded"
	CommandFailed    = "failed"
	CommandCancelled = "cancelled"
)

// Collector holds every metric for one supervisor instance. A nil *Collector
// is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	info            *prometheus.GaugeVec
	spawnsTotal     *prometheus.CounterVec
	spawnFailures   *prometheus.CounterVec
	exitsTotal      *prometheus.CounterVec
	restartsTotal   *prometheus.CounterVec
	running         *prometheus.GaugeVec
	backoffSeconds  *prometheus.GaugeVec
	uptimeSeconds   *prometheus.HistogramVec
	outputLines     *prometheus.CounterVec
	logEntries      *prometheus.CounterVec
	commandsTotal   *prometheus.CounterVec
	commandDuration prometheus.Histogram
	eventsTotal     *prometheus.CounterVec

	mu            sync.Mutex
	totalSpawns   int64
	totalRestarts int64
}

// NewCollector creates a collector with its own registry, including Go
// runtime and process collectors.
func NewCollector(version string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewCollectorWithRegistry(version, reg)
}

// NewCollectorWithRegistry registers metrics on registry.
// Useful for testing.
func NewCollectorWithRegistry(version string, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Build information (value always 1)",
		}, []string{"version"}),
		spawnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_spawns_total",
			Help:      "Successful process spawns",
		}, []string{"process"}),
		spawnFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_spawn_failures_total",
			Help:      "Spawn attempts that failed before the process started",
		}, []string{"process"}),
		exitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_exits_total",
			Help:      "Process exits by outcome",
		}, []string{"process", "outcome"}),
		restartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_restarts_total",
			Help:      "Process restarts, automatic or user requested",
		}, []string{"process", "trigger"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_running",
			Help:      "1 while the process is running",
		}, []string{"process"}),
		backoffSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_backoff_seconds",
			Help:      "Delay before the pending automatic restart (0 if none)",
		}, []string{"process"}),
		uptimeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_uptime_seconds",
			Help:      "Process lifetime at exit",
			Buckets:   []float64{1, 5, 30, 60, 300, 900, 3600, 14400},
		}, []string{"process"}),
		outputLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_output_lines_total",
			Help:      "Output lines captured from managed processes",
		}, []string{"process", "stream"}),
		logEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_entries_total",
			Help:      "Lines read from tailed log files",
		}, []string{"file", "level"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Ephemeral commands by outcome",
		}, []string{"outcome"}),
		commandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Ephemeral command run time",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events handled by the reconciliation loop",
		}, []string{"kind"}),
	}

	registry.MustRegister(
		c.info,
		c.spawnsTotal,
		c.spawnFailures,
		c.exitsTotal,
		c.restartsTotal,
		c.running,
		c.backoffSeconds,
		c.uptimeSeconds,
		c.outputLines,
		c.logEntries,
		c.commandsTotal,
		c.commandDuration,
		c.eventsTotal,
	)
	if g, ok := registry.(prometheus.Gatherer); ok {
		c.gatherer = g
	}

	c.info.WithLabelValues(version).Set(1)
	return c
}

// RegisterQueueDepth exposes the event bus backlog as a gauge.
func (c *Collector) RegisterQueueDepth(registry prometheus.Registerer, depth func() int) {
	if c == nil {
		return
	}
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "event_queue_depth",
		Help:      "Events waiting in the bus",
	}, func() float64 { return float64(depth()) }))
}

// Gatherer returns the registry metrics are served from.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil || c.gatherer == nil {
		return prometheus.NewRegistry()
	}
	return c.gatherer
}

// Registerer returns the registry for additional metrics, or nil.
func (c *Collector) Registerer() prometheus.Registerer {
	if c == nil {
		return nil
	}
	r, _ := c.gatherer.(prometheus.Registerer)
	return r
}

// =============================================================================
// Process lifecycle
// =============================================================================

// ProcessSpawned records a successful spawn.
func (c *Collector) ProcessSpawned(name string) {
	if c == nil {
		return
	}
	c.spawnsTotal.WithLabelValues(name).Inc()
	c.running.WithLabelValues(name).Set(1)
	c.backoffSeconds.WithLabelValues(name).Set(0)

	c.mu.Lock()
	c.totalSpawns++
	c.mu.Unlock()
}

// SpawnFailed records a spawn that never started.
func (c *Collector) SpawnFailed(name string) {
	if c == nil {
		return
	}
	c.spawnFailures.WithLabelValues(name).Inc()
	c.running.WithLabelValues(name).Set(0)
}

// ProcessExited records an exit. A nil exitCode means the process was killed
// by a signal.
func (c *Collector) ProcessExited(name string, exitCode *int, requested bool, uptime time.Duration) {
	if c == nil {
		return
	}
	c.exitsTotal.WithLabelValues(name, ExitOutcome(exitCode, requested)).Inc()
	c.running.WithLabelValues(name).Set(0)
	c.uptimeSeconds.WithLabelValues(name).Observe(uptime.Seconds())
}

// ExitOutcome categorises an exit.
func ExitOutcome(exitCode *int, requested bool) string {
	switch {
	case requested:
		return OutcomeRequested
	case exitCode == nil:
		return OutcomeSignalled
	case *exitCode == 0:
		return OutcomeClean
	default:
		return OutcomeFailed
	}
}

// RestartScheduled records an automatic restart and its delay.
func (c *Collector) RestartScheduled(name string, delay time.Duration) {
	if c == nil {
		return
	}
	c.restartsTotal.WithLabelValues(name, "auto").Inc()
	c.backoffSeconds.WithLabelValues(name).Set(delay.Seconds())

	c.mu.Lock()
	c.totalRestarts++
	c.mu.Unlock()
}

// RestartRequested records a user-requested restart.
func (c *Collector) RestartRequested(name string) {
	if c == nil {
		return
	}
	c.restartsTotal.WithLabelValues(name, "manual").Inc()

	c.mu.Lock()
	c.totalRestarts++
	c.mu.Unlock()
}

// RemoveProcess drops per-process series after the process is unregistered.
func (c *Collector) RemoveProcess(name string) {
	if c == nil {
		return
	}
	c.running.DeleteLabelValues(name)
	c.backoffSeconds.DeleteLabelValues(name)
}

// =============================================================================
// Output, logs, commands
// =============================================================================

// OutputLine counts one captured output line.
func (c *Collector) OutputLine(name string, isStderr bool) {
	if c == nil {
		return
	}
	stream := "stdout"
	if isStderr {
		stream = "stderr"
	}
	c.outputLines.WithLabelValues(name, stream).Inc()
}

// LogEntry counts one tailed log line.
func (c *Collector) LogEntry(file, level string) {
	if c == nil {
		return
	}
	c.logEntries.WithLabelValues(file, level).Inc()
}

// CommandFinished records an ephemeral command result.
func (c *Collector) CommandFinished(exitCode *int, cancelled bool, d time.Duration) {
	if c == nil {
		return
	}
	outcome := CommandSucceeded
	switch {
	case cancelled:
		outcome = CommandCancelled
	case exitCode == nil || *exitCode != 0:
		outcome = CommandFailed
	}
	c.commandsTotal.WithLabelValues(outcome).Inc()
	c.commandDuration.Observe(d.Seconds())
}

// EventHandled counts one event processed by the loop.
func (c *Collector) EventHandled(kind string) {
	if c == nil {
		return
	}
	c.eventsTotal.WithLabelValues(kind).Inc()
}

// =============================================================================
// Summary
// =============================================================================

// TotalSpawns returns the number of successful spawns.
func (c *Collector) TotalSpawns() int64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSpawns
}

// TotalRestarts returns automatic plus manual restarts.
func (c *Collector) TotalRestarts() int64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalRestarts
}

// Gather collects the current metric families.
func (c *Collector) Gather() ([]*dto.MetricFamily, error) {
	return c.Gatherer().Gather()
}

// WriteText writes every metric in the Prometheus text format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
