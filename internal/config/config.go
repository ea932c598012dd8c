// Package config provides configuration management for go-devmux: command
// line options and the per-project .devmux.toml file.
package config

import (
	"path/filepath"
	"time"
)

// Config holds all runtime options.
type Config struct {
	// Project
	ProjectDir  string `json:"project_dir"`
	ConfigPath  string `json:"config_path"` // default: <project_dir>/.devmux.toml
	WatchConfig bool   `json:"watch_config"`

	// Process lifecycle
	KillTimeout     time.Duration `json:"kill_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	RestartDelay    time.Duration `json:"restart_delay"`
	BackoffInitial  time.Duration `json:"backoff_initial"`
	BackoffMax      time.Duration `json:"backoff_max"`

	// Logs
	LogLines       int      `json:"log_lines"`
	TailFiles      []string `json:"tail_files"`
	LogLevelFilter string   `json:"log_level_filter"` // minimum level shown in the log pane
	NoLogTail      bool     `json:"no_log_tail"`

	// Observability
	MetricsAddr string `json:"metrics_addr"` // empty disables the metrics server
	MetricsDump string `json:"metrics_dump"` // write final metrics here on exit
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text
	LogLevel    string `json:"log_level"`
	LogFile     string `json:"log_file"`

	// Modes
	NoTUI         bool `json:"no_tui"`
	SkipPreflight bool `json:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ProjectDir: ".",

		KillTimeout:     5 * time.Second,
		ShutdownTimeout: time.Second,
		RestartDelay:    500 * time.Millisecond,
		BackoffInitial:  time.Second,
		BackoffMax:      60 * time.Second,

		LogLines:       500,
		LogLevelFilter: "debug",

		LogFormat: "text",
		LogLevel:  "info",
	}
}

// ProjectFilePath returns the project file location.
func (c *Config) ProjectFilePath() string {
	if c.ConfigPath != "" {
		return c.ConfigPath
	}
	return filepath.Join(c.ProjectDir, ProjectFileName)
}

// LogDir returns the Laravel log directory of the project.
func (c *Config) LogDir() string {
	return filepath.Join(c.ProjectDir, "storage", "logs")
}

// ResolvedTailFiles returns TailFiles with relative paths joined to the
// project directory.
func (c *Config) ResolvedTailFiles() []string {
	out := make([]string, 0, len(c.TailFiles))
	for _, f := range c.TailFiles {
		if !filepath.IsAbs(f) {
			f = filepath.Join(c.ProjectDir, f)
		}
		out = append(out, f)
	}
	return out
}
