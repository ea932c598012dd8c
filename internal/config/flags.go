package config

import (
	"github.com/spf13/pflag"
)

// Flag names shared between BindFlags and ApplyProjectFile.
const (
	flagLogLines       = "log-lines"
	flagTail           = "tail"
	flagLogLevelFilter = "log-level-filter"
)

// BindFlags registers the command line flags on fs, writing into cfg.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	// Project
	fs.StringVarP(&cfg.ConfigPath, "config", "c", cfg.ConfigPath,
		"Project file (default <project-dir>/"+ProjectFileName+")")
	fs.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig,
		"Reload processes when the project file changes")

	// Process lifecycle
	fs.DurationVar(&cfg.KillTimeout, "kill-timeout", cfg.KillTimeout,
		"Grace period between SIGTERM and SIGKILL when stopping a process")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout,
		"Grace period per process on exit (processes stop in parallel)")
	fs.DurationVar(&cfg.RestartDelay, "restart-delay", cfg.RestartDelay,
		"Pause between stop and start on manual restart")
	fs.DurationVar(&cfg.BackoffInitial, "backoff-initial", cfg.BackoffInitial,
		"Auto-restart delay after the first crash (doubles per consecutive crash)")
	fs.DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax,
		"Upper bound on the auto-restart delay")

	// Logs
	fs.IntVar(&cfg.LogLines, flagLogLines, cfg.LogLines,
		"Number of log entries kept in the log pane")
	fs.StringArrayVar(&cfg.TailFiles, flagTail, cfg.TailFiles,
		"Extra file to tail besides storage/logs/*.log (repeatable)")
	fs.StringVar(&cfg.LogLevelFilter, flagLogLevelFilter, cfg.LogLevelFilter,
		"Minimum Laravel log level shown: debug, info, notice, warning, error, critical, alert, emergency")
	fs.BoolVar(&cfg.NoLogTail, "no-log-tail", cfg.NoLogTail,
		"Do not tail Laravel log files")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr,
		"Prometheus metrics listen address, e.g. 127.0.0.1:17092 (disabled when empty)")
	fs.StringVar(&cfg.MetricsDump, "metrics-dump", cfg.MetricsDump,
		"Write the final metrics in Prometheus text format to this file on exit")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose,
		"Enable debug logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat,
		"Log format: json or text")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel,
		"Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile,
		"Write supervisor logs to this file (TUI mode discards them otherwise)")

	// Modes
	fs.BoolVar(&cfg.NoTUI, "no-tui", cfg.NoTUI,
		"Run headless and mirror process output to the log")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight,
		"Skip startup checks (project lock is still taken)")
}

// ApplyProjectFile copies [logs] settings from pf into cfg for every flag
// the user did not set explicitly. changed reports whether a flag was set.
func ApplyProjectFile(cfg *Config, pf *ProjectFile, changed func(name string) bool) {
	if pf == nil {
		return
	}
	if pf.Logs.MaxLines > 0 && !changed(flagLogLines) {
		cfg.LogLines = pf.Logs.MaxLines
	}
	if len(pf.Logs.Files) > 0 && !changed(flagTail) {
		cfg.TailFiles = append([]string(nil), pf.Logs.Files...)
	}
	if pf.Logs.DefaultLevel != "" && !changed(flagLogLevelFilter) {
		cfg.LogLevelFilter = pf.Logs.DefaultLevel
	}
}
